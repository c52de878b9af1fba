package validation

type Register struct {
	Name     string `json:"name" label:"Name" validate:"required,min=3,max=60,personname"`
	Username string `json:"username" label:"Username" validate:"required,min=5,max=32,username"`
	Email    string `json:"email" label:"Email" validate:"required,email,strictemail"`
	Password string `json:"password" label:"Password" validate:"required,min=8,max=60,password"`
}

type Login struct {
	Username string `json:"username" label:"Username" validate:"required,min=5,max=32,username"`
	Password string `json:"password" label:"Password" validate:"required,min=8,max=60,password"`
}

// ProfileUpdate changes name, username or email. Password is the current
// password and confirms the change.
type ProfileUpdate struct {
	Name     string `json:"name" label:"Name" validate:"omitempty,min=3,max=60,personname"`
	Username string `json:"username" label:"Username" validate:"omitempty,min=5,max=32,username"`
	Email    string `json:"email" label:"Email" validate:"omitempty,email,strictemail"`
	Password string `json:"password" label:"Password" validate:"required,min=8,max=60,password"`
}

type PasswordChange struct {
	OldPassword string `json:"oldPassword" label:"Old Password" validate:"required,min=8,max=60,password"`
	NewPassword string `json:"newPassword" label:"New Password" validate:"required,min=8,max=60,password"`
}

type Section struct {
	Title       string `json:"title" label:"Title" validate:"required,min=3,max=60,title"`
	Description string `json:"description" label:"Description" validate:"required,min=10,max=240,description"`
}

type SectionUpdate struct {
	Title       string `json:"title" label:"Title" validate:"omitempty,min=3,max=60,title"`
	Description string `json:"description" label:"Description" validate:"omitempty,min=10,max=240,description"`
}

type Book struct {
	Title       string `json:"title" label:"Title" validate:"required,min=3,max=60,title"`
	Author      string `json:"author" label:"Author" validate:"required,min=3,max=60,personname"`
	Description string `json:"description" label:"Description" validate:"required,min=10,max=240,description"`
}

type BookUpdate struct {
	Title       string `json:"title" label:"Title" validate:"omitempty,min=3,max=60,title"`
	Author      string `json:"author" label:"Author" validate:"omitempty,min=3,max=60,personname"`
	Description string `json:"description" label:"Description" validate:"omitempty,min=10,max=240,description"`
	SectionSlug string `json:"sectionSlug" label:"Section" validate:"omitempty,max=80"`
}

type BorrowRequest struct {
	Days int `json:"days" label:"Days" validate:"required,min=1,max=7"`
}

type Decision struct {
	Status string `json:"status" label:"Status" validate:"required,oneof=rejected accepted"`
}

type Feedback struct {
	Rating  int    `json:"rating" label:"Rating" validate:"required,min=1,max=5"`
	Content string `json:"content" label:"Content" validate:"required,min=10,max=240,description"`
}

type FeedbackUpdate struct {
	Rating  int    `json:"rating" label:"Rating" validate:"omitempty,min=1,max=5"`
	Content string `json:"content" label:"Content" validate:"omitempty,min=10,max=240,description"`
}

type Search struct {
	Query string `json:"query" label:"Query" validate:"required,min=2,max=60,query"`
}

type Announcement struct {
	Message string `json:"message" label:"Message" validate:"required,min=3,max=240"`
}
