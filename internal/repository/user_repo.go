package repository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/noah-isme/levelup-api/internal/models"
)

// UserRepository persists accounts and their role profiles.
type UserRepository interface {
	CreateWithProfiles(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uint) (models.User, error)
	GetByEmail(ctx context.Context, email string) (models.User, error)
	EmailExists(ctx context.Context, email string, excludeID uint) (bool, error)
	RUTExists(ctx context.Context, rut string) (bool, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
	Update(ctx context.Context, id uint, updates map[string]interface{}) (models.User, error)
	ListByRole(ctx context.Context, role string) ([]models.User, error)
	ListStudents(ctx context.Context, courseID *uint) ([]models.User, error)
	CountByRole(ctx context.Context, role string) (int64, error)
	OwnedActivities(ctx context.Context, userID uint) (int64, error)
	Delete(ctx context.Context, id uint) error
	GetStudentProfile(ctx context.Context, userID uint) (models.StudentProfile, error)
	SaveStudentProfile(ctx context.Context, profile *models.StudentProfile) error
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository constructs the user repository.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) CreateWithProfiles(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			return err
		}

		switch user.Role {
		case models.RoleStudent:
			profile := models.StudentProfile{UserID: user.ID}
			profile.SetAccessories(nil)
			if err := tx.Create(&profile).Error; err != nil {
				return err
			}
		case models.RoleTeacher:
			if err := tx.Create(&models.TeacherProfile{UserID: user.ID}).Error; err != nil {
				return err
			}
		case models.RoleAdmin:
			if err := tx.Create(&models.AdminProfile{UserID: user.ID}).Error; err != nil {
				return err
			}
		}

		return tx.Create(&models.GamificationProfile{UserID: user.ID}).Error
	})
}

func (r *userRepository) GetByID(ctx context.Context, id uint) (models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return models.User{}, err
	}
	return user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&user).Error; err != nil {
		return models.User{}, err
	}
	return user, nil
}

func (r *userRepository) EmailExists(ctx context.Context, email string, excludeID uint) (bool, error) {
	query := r.db.WithContext(ctx).Model(&models.User{}).Where("LOWER(email) = ?", strings.ToLower(email))
	if excludeID > 0 {
		query = query.Where("id <> ?", excludeID)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *userRepository) RUTExists(ctx context.Context, rut string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.User{}).Where("rut = ?", rut).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *userRepository) UsernameExists(ctx context.Context, username string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.User{}).Where("username = ?", username).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *userRepository) Update(ctx context.Context, id uint, updates map[string]interface{}) (models.User, error) {
	result := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return models.User{}, result.Error
	}
	if result.RowsAffected == 0 {
		return models.User{}, gorm.ErrRecordNotFound
	}
	return r.GetByID(ctx, id)
}

func (r *userRepository) ListByRole(ctx context.Context, role string) ([]models.User, error) {
	var users []models.User
	if err := r.db.WithContext(ctx).
		Where("role = ?", role).
		Order("last_name ASC, first_name ASC, id ASC").
		Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (r *userRepository) ListStudents(ctx context.Context, courseID *uint) ([]models.User, error) {
	query := r.db.WithContext(ctx).Model(&models.User{}).Where("users.role = ?", models.RoleStudent)
	if courseID != nil {
		enrolled := r.db.WithContext(ctx).Model(&models.Enrollment{}).Select("student_id").Where("course_id = ?", *courseID)
		query = query.Where("users.id IN (?)", enrolled)
	}

	var users []models.User
	if err := query.Order("users.last_name ASC, users.first_name ASC, users.id ASC").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (r *userRepository) CountByRole(ctx context.Context, role string) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.User{}).Where("role = ?", role).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *userRepository) OwnedActivities(ctx context.Context, userID uint) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Activity{}).Where("teacher_id = ?", userID).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *userRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var profileIDs []uint
		if err := tx.Model(&models.GamificationProfile{}).Where("user_id = ?", id).Pluck("id", &profileIDs).Error; err != nil {
			return err
		}
		if len(profileIDs) > 0 {
			if err := tx.Where("profile_id IN ?", profileIDs).Delete(&models.UserReward{}).Error; err != nil {
				return err
			}
		}

		var submissionIDs []uint
		if err := tx.Model(&models.Submission{}).Where("student_id = ?", id).Pluck("id", &submissionIDs).Error; err != nil {
			return err
		}
		if len(submissionIDs) > 0 {
			if err := tx.Where("submission_id IN ?", submissionIDs).Delete(&models.Answer{}).Error; err != nil {
				return err
			}
		}

		if err := tx.Exec("DELETE FROM reinforcement_group_members WHERE user_id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.ReinforcementGroup{}).Where("math_teacher_id = ?", id).Update("math_teacher_id", nil).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.ReinforcementGroup{}).Where("english_teacher_id = ?", id).Update("english_teacher_id", nil).Error; err != nil {
			return err
		}

		cleanup := []struct {
			model  interface{}
			column string
		}{
			{&models.Submission{}, "student_id"},
			{&models.ActivityAssignment{}, "student_id"},
			{&models.Enrollment{}, "student_id"},
			{&models.TeacherAssignment{}, "teacher_id"},
			{&models.GamificationProfile{}, "user_id"},
			{&models.StudentProfile{}, "user_id"},
			{&models.TeacherProfile{}, "user_id"},
			{&models.AdminProfile{}, "user_id"},
		}
		for _, target := range cleanup {
			if err := tx.Where(target.column+" = ?", id).Delete(target.model).Error; err != nil {
				return err
			}
		}

		result := tx.Delete(&models.User{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

func (r *userRepository) GetStudentProfile(ctx context.Context, userID uint) (models.StudentProfile, error) {
	var profile models.StudentProfile
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&profile).Error
	if err == nil {
		return profile, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return models.StudentProfile{}, err
	}

	profile = models.StudentProfile{UserID: userID}
	profile.SetAccessories(nil)
	if err := r.db.WithContext(ctx).Create(&profile).Error; err != nil {
		return models.StudentProfile{}, err
	}
	return profile, nil
}

func (r *userRepository) SaveStudentProfile(ctx context.Context, profile *models.StudentProfile) error {
	return r.db.WithContext(ctx).Save(profile).Error
}
