package models

// MedicalRecord represents a doctor-authored record tied 1:1 to an
// appointment. A record stays in draft until the doctor finalizes it; only
// finalized records are visible to the patient. AppointmentID is nullable
// because deleting an appointment detaches, not deletes, its record.
type MedicalRecord struct {
	BaseModel
	AppointmentID *string `gorm:"size:36;index" json:"appointmentId"`
	PatientID     string  `gorm:"size:36;index" json:"patientId"`
	DoctorID      string  `gorm:"size:36;index" json:"doctorId"`
	Title         string  `gorm:"size:255;not null" json:"title"`
	Text          string  `gorm:"type:text" json:"text"`
	Draft         bool    `gorm:"default:true" json:"draft"`

	// Relations
	Patient     *User        `gorm:"foreignKey:PatientID" json:"patient,omitempty"`
	Doctor      *User        `gorm:"foreignKey:DoctorID" json:"doctor,omitempty"`
	Appointment *Appointment `gorm:"foreignKey:AppointmentID" json:"-"`
}
