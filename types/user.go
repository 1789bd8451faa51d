package types

type User struct {
	Id       string `json:"id" gorm:"primaryKey"` // e-mail, unique!
	Nick     string `json:"nick"`
	Language string `json:"language"` // alpha-2 iso, becomes the bbb locale on join
}
