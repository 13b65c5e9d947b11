package postgres

import (
	"context"

	"github.com/SAP-F-2025/course-progression-service/internal/models"
	"github.com/SAP-F-2025/course-progression-service/internal/repositories"
	"gorm.io/gorm"
)

type CertificatePostgreSQL struct {
	db *gorm.DB
}

func NewCertificatePostgreSQL(db *gorm.DB) repositories.CertificateRepository {
	return &CertificatePostgreSQL{db: db}
}

// GetCertificate returns the certificate for the learner's latest qualifying attempt.
func (c *CertificatePostgreSQL) GetCertificate(ctx context.Context, learnerID string, assessmentID uint) (*models.Certificate, error) {
	var certificate models.Certificate
	if err := c.db.WithContext(ctx).
		Where("learner_id = ? AND assessment_id = ?", learnerID, assessmentID).
		Order("issued_at DESC").
		First(&certificate).Error; err != nil {
		return nil, translateError(err)
	}
	return &certificate, nil
}

// NewPostgresRepository wires every postgres repository into a repositories.Repository.
func NewPostgresRepository(db *gorm.DB) repositories.Repository {
	return repositories.NewRepository(
		NewCoursePostgreSQL(db),
		NewProgressPostgreSQL(db),
		NewAttemptPostgreSQL(db),
		NewCertificatePostgreSQL(db),
	)
}
