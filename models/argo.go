package models

import (
	"time"
)

// ArgoFloat is one physical float, keyed by its WMO id
type ArgoFloat struct {
	ID          uint       `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	WMOID       int64      `gorm:"column:wmo_id;uniqueIndex:idx_argo_floats_wmo_id;not null" json:"wmo_id"`
	LaunchDate  *time.Time `gorm:"column:launch_date" json:"launch_date,omitempty"`
	ProjectName *string    `gorm:"column:project_name;size:255" json:"project_name,omitempty"`
	PIName      *string    `gorm:"column:pi_name;size:255" json:"pi_name,omitempty"`
}

// TableName customizes the table name
func (ArgoFloat) TableName() string {
	return "argo_floats"
}

// Measurement is a single observation of a float at one pressure level.
// Rows are append-only.
type Measurement struct {
	ID          uint      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	FloatID     uint      `gorm:"column:float_id;not null;index:idx_measurements_float_id" json:"float_id"`
	Float       ArgoFloat `gorm:"foreignKey:FloatID;references:ID;constraint:OnDelete:CASCADE" json:"-"`
	Timestamp   time.Time `gorm:"column:timestamp;not null" json:"timestamp"`
	Latitude    *float64  `gorm:"column:latitude" json:"latitude,omitempty"`
	Longitude   *float64  `gorm:"column:longitude" json:"longitude,omitempty"`
	Pressure    float64   `gorm:"column:pressure;not null" json:"pressure"`
	Temperature *float64  `gorm:"column:temperature" json:"temperature,omitempty"`
	Salinity    *float64  `gorm:"column:salinity" json:"salinity,omitempty"`
}

// TableName customizes the table name
func (Measurement) TableName() string {
	return "measurements"
}

// MeasurementColumns lists the writable measurement columns in table order
var MeasurementColumns = []string{
	"float_id", "timestamp", "latitude", "longitude", "pressure", "temperature", "salinity",
}

// GetAllModels returns all models for migration, parents first
func GetAllModels() []interface{} {
	return []interface{}{
		&ArgoFloat{},
		&Measurement{},
	}
}
