package types

// User is a customer account shown in the admin users screen.
type User struct {
	ID       string     `json:"id"`
	Name     string     `json:"name"`
	Phone    string     `json:"phone"`
	JoinDate string     `json:"join_date"` // Jalali date as displayed, e.g. ۱۴۰۳/۰۱/۱۵
	Status   UserStatus `json:"status"`
}
