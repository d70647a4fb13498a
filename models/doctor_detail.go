package models

// DoctorDetail holds the professional profile for a user with the doctor role
type DoctorDetail struct {
	ID              uint   `gorm:"primaryKey" json:"id"`
	UserID          uint   `gorm:"uniqueIndex;not null" json:"user_id"` // foreign key to users table
	User            User   `gorm:"foreignKey:UserID" json:"-"`
	Specialization  string `json:"specialization"`
	Qualification   string `json:"qualification"`
	ExperienceYears int    `json:"experience_years"`
	Availability    string `json:"availability"` // free-form schedule text, e.g. "Mon-Fri 9:00-17:00"
}

// TableName specifies the table name for the DoctorDetail model
func (DoctorDetail) TableName() string {
	return "doctor_details"
}
