package repository

import (
	"context"
	"errors"

	"github.com/clinilab/labtrail/internal/model"
	"gorm.io/gorm"
)

var ErrAppointmentNotFound = errors.New("appointment not found")

type PostgresAppointmentRepo struct {
	db *gorm.DB
}

func NewPostgresAppointmentRepo(db *gorm.DB) *PostgresAppointmentRepo {
	repo := &PostgresAppointmentRepo{db: db}
	_ = repo.ensureSchema()
	return repo
}

func (r *PostgresAppointmentRepo) Create(ctx context.Context, appt *model.Appointment) error {
	return r.db.WithContext(ctx).Create(appt).Error
}

func (r *PostgresAppointmentRepo) GetByID(ctx context.Context, id int64) (*model.Appointment, error) {
	var appt model.Appointment
	err := r.db.WithContext(ctx).First(&appt, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAppointmentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &appt, nil
}

func (r *PostgresAppointmentRepo) ensureSchema() error {
	return r.db.AutoMigrate(&model.Appointment{})
}
