package repository

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/levelup-api/internal/models"
)

// AcademicRepository persists courses, subjects and who belongs where.
type AcademicRepository interface {
	CreateCourse(ctx context.Context, course *models.Course) error
	SaveCourse(ctx context.Context, course *models.Course) error
	DeleteCourse(ctx context.Context, id uint) error
	GetCourse(ctx context.Context, id uint) (models.Course, error)
	ListCourses(ctx context.Context) ([]models.Course, error)
	CourseExists(ctx context.Context, level int, letter string, excludeID uint) (bool, error)
	FindCourse(ctx context.Context, level int, letter string) (models.Course, error)

	CreateSubject(ctx context.Context, subject *models.Subject) error
	SaveSubject(ctx context.Context, subject *models.Subject) error
	DeleteSubject(ctx context.Context, id uint) error
	GetSubject(ctx context.Context, id uint) (models.Subject, error)
	GetSubjectBySlug(ctx context.Context, slug string) (models.Subject, error)
	GetSubjectByCode(ctx context.Context, code string) (models.Subject, error)
	ListSubjects(ctx context.Context) ([]models.Subject, error)
	SubjectCodeExists(ctx context.Context, code string, excludeID uint) (bool, error)
	SubjectSlugExists(ctx context.Context, slug string, excludeID uint) (bool, error)

	CreateTeacherAssignment(ctx context.Context, assignment *models.TeacherAssignment) error
	DeleteTeacherAssignment(ctx context.Context, id uint) error
	ListTeacherAssignments(ctx context.Context) ([]models.TeacherAssignment, error)
	TeacherAssignmentExists(ctx context.Context, teacherID, subjectID uint) (bool, error)

	CreateEnrollment(ctx context.Context, enrollment *models.Enrollment) error
	DeleteEnrollment(ctx context.Context, id uint) error
	GetEnrollment(ctx context.Context, id uint) (models.Enrollment, error)
	ListEnrollments(ctx context.Context, courseID *uint) ([]models.Enrollment, error)
	EnrollmentExists(ctx context.Context, studentID, courseID uint) (bool, error)
	LatestEnrollment(ctx context.Context, studentID uint) (models.Enrollment, error)
	StudentIDsInCourses(ctx context.Context, courseIDs []uint) ([]uint, error)

	SaveReinforcementGroup(ctx context.Context, group *models.ReinforcementGroup, memberIDs []uint) error
	GetReinforcementGroup(ctx context.Context, level int) (models.ReinforcementGroup, error)
	ListReinforcementGroups(ctx context.Context) ([]models.ReinforcementGroup, error)
	DeleteReinforcementGroup(ctx context.Context, id uint) error
	GroupOfMember(ctx context.Context, studentID uint) (models.ReinforcementGroup, error)

	Count(ctx context.Context, model interface{}) (int64, error)
}

type academicRepository struct {
	db *gorm.DB
}

// NewAcademicRepository constructs the academic repository.
func NewAcademicRepository(db *gorm.DB) AcademicRepository {
	return &academicRepository{db: db}
}

func (r *academicRepository) CreateCourse(ctx context.Context, course *models.Course) error {
	return r.db.WithContext(ctx).Create(course).Error
}

func (r *academicRepository) SaveCourse(ctx context.Context, course *models.Course) error {
	return r.db.WithContext(ctx).Save(course).Error
}

func (r *academicRepository) DeleteCourse(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("course_id = ?", id).Delete(&models.Enrollment{}).Error; err != nil {
			return err
		}
		return deleteByID(tx, &models.Course{}, id)
	})
}

func (r *academicRepository) GetCourse(ctx context.Context, id uint) (models.Course, error) {
	var course models.Course
	if err := r.db.WithContext(ctx).First(&course, id).Error; err != nil {
		return models.Course{}, err
	}
	return course, nil
}

func (r *academicRepository) ListCourses(ctx context.Context) ([]models.Course, error) {
	var courses []models.Course
	if err := r.db.WithContext(ctx).Order("level ASC, letter ASC").Find(&courses).Error; err != nil {
		return nil, err
	}
	return courses, nil
}

func (r *academicRepository) CourseExists(ctx context.Context, level int, letter string, excludeID uint) (bool, error) {
	query := r.db.WithContext(ctx).Model(&models.Course{}).Where("level = ? AND letter = ?", level, letter)
	return exists(query, excludeID)
}

func (r *academicRepository) FindCourse(ctx context.Context, level int, letter string) (models.Course, error) {
	var course models.Course
	if err := r.db.WithContext(ctx).Where("level = ? AND letter = ?", level, letter).First(&course).Error; err != nil {
		return models.Course{}, err
	}
	return course, nil
}

func (r *academicRepository) CreateSubject(ctx context.Context, subject *models.Subject) error {
	return r.db.WithContext(ctx).Create(subject).Error
}

func (r *academicRepository) SaveSubject(ctx context.Context, subject *models.Subject) error {
	return r.db.WithContext(ctx).Save(subject).Error
}

func (r *academicRepository) DeleteSubject(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("subject_id = ?", id).Delete(&models.TeacherAssignment{}).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Activity{}).Where("subject_id = ?", id).Update("subject_id", nil).Error; err != nil {
			return err
		}
		return deleteByID(tx, &models.Subject{}, id)
	})
}

func (r *academicRepository) GetSubject(ctx context.Context, id uint) (models.Subject, error) {
	var subject models.Subject
	if err := r.db.WithContext(ctx).First(&subject, id).Error; err != nil {
		return models.Subject{}, err
	}
	return subject, nil
}

func (r *academicRepository) GetSubjectBySlug(ctx context.Context, slug string) (models.Subject, error) {
	var subject models.Subject
	if err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&subject).Error; err != nil {
		return models.Subject{}, err
	}
	return subject, nil
}

func (r *academicRepository) GetSubjectByCode(ctx context.Context, code string) (models.Subject, error) {
	var subject models.Subject
	if err := r.db.WithContext(ctx).Where("UPPER(code) = ?", strings.ToUpper(code)).First(&subject).Error; err != nil {
		return models.Subject{}, err
	}
	return subject, nil
}

func (r *academicRepository) ListSubjects(ctx context.Context) ([]models.Subject, error) {
	var subjects []models.Subject
	if err := r.db.WithContext(ctx).Order("name ASC, id ASC").Find(&subjects).Error; err != nil {
		return nil, err
	}
	return subjects, nil
}

func (r *academicRepository) SubjectCodeExists(ctx context.Context, code string, excludeID uint) (bool, error) {
	query := r.db.WithContext(ctx).Model(&models.Subject{}).Where("UPPER(code) = ?", strings.ToUpper(code))
	return exists(query, excludeID)
}

func (r *academicRepository) SubjectSlugExists(ctx context.Context, slug string, excludeID uint) (bool, error) {
	query := r.db.WithContext(ctx).Model(&models.Subject{}).Where("slug = ?", slug)
	return exists(query, excludeID)
}

func (r *academicRepository) CreateTeacherAssignment(ctx context.Context, assignment *models.TeacherAssignment) error {
	if err := r.db.WithContext(ctx).Create(assignment).Error; err != nil {
		return err
	}
	return r.db.WithContext(ctx).Preload("Teacher").Preload("Subject").First(assignment, assignment.ID).Error
}

func (r *academicRepository) DeleteTeacherAssignment(ctx context.Context, id uint) error {
	return deleteByID(r.db.WithContext(ctx), &models.TeacherAssignment{}, id)
}

func (r *academicRepository) ListTeacherAssignments(ctx context.Context) ([]models.TeacherAssignment, error) {
	var assignments []models.TeacherAssignment
	if err := r.db.WithContext(ctx).
		Preload("Teacher").
		Preload("Subject").
		Order("id ASC").
		Find(&assignments).Error; err != nil {
		return nil, err
	}
	return assignments, nil
}

func (r *academicRepository) TeacherAssignmentExists(ctx context.Context, teacherID, subjectID uint) (bool, error) {
	query := r.db.WithContext(ctx).Model(&models.TeacherAssignment{}).Where("teacher_id = ? AND subject_id = ?", teacherID, subjectID)
	return exists(query, 0)
}

func (r *academicRepository) CreateEnrollment(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.EnrolledAt.IsZero() {
		enrollment.EnrolledAt = time.Now().UTC()
	}
	if err := r.db.WithContext(ctx).Create(enrollment).Error; err != nil {
		return err
	}
	return r.db.WithContext(ctx).Preload("Student").Preload("Course").First(enrollment, enrollment.ID).Error
}

func (r *academicRepository) DeleteEnrollment(ctx context.Context, id uint) error {
	return deleteByID(r.db.WithContext(ctx), &models.Enrollment{}, id)
}

func (r *academicRepository) GetEnrollment(ctx context.Context, id uint) (models.Enrollment, error) {
	var enrollment models.Enrollment
	if err := r.db.WithContext(ctx).Preload("Student").Preload("Course").First(&enrollment, id).Error; err != nil {
		return models.Enrollment{}, err
	}
	return enrollment, nil
}

func (r *academicRepository) ListEnrollments(ctx context.Context, courseID *uint) ([]models.Enrollment, error) {
	query := r.db.WithContext(ctx).Preload("Student").Preload("Course")
	if courseID != nil {
		query = query.Where("course_id = ?", *courseID)
	}

	var enrollments []models.Enrollment
	if err := query.Order("enrolled_at DESC, id DESC").Find(&enrollments).Error; err != nil {
		return nil, err
	}
	return enrollments, nil
}

func (r *academicRepository) EnrollmentExists(ctx context.Context, studentID, courseID uint) (bool, error) {
	query := r.db.WithContext(ctx).Model(&models.Enrollment{}).Where("student_id = ? AND course_id = ?", studentID, courseID)
	return exists(query, 0)
}

func (r *academicRepository) LatestEnrollment(ctx context.Context, studentID uint) (models.Enrollment, error) {
	var enrollment models.Enrollment
	if err := r.db.WithContext(ctx).
		Preload("Course").
		Where("student_id = ?", studentID).
		Order("enrolled_at DESC, id DESC").
		First(&enrollment).Error; err != nil {
		return models.Enrollment{}, err
	}
	return enrollment, nil
}

func (r *academicRepository) StudentIDsInCourses(ctx context.Context, courseIDs []uint) ([]uint, error) {
	if len(courseIDs) == 0 {
		return []uint{}, nil
	}
	var ids []uint
	if err := r.db.WithContext(ctx).
		Model(&models.Enrollment{}).
		Where("course_id IN ?", courseIDs).
		Distinct().
		Order("student_id ASC").
		Pluck("student_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *academicRepository) SaveReinforcementGroup(ctx context.Context, group *models.ReinforcementGroup, memberIDs []uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Members", "MathTeacher", "EnglishTeacher").Save(group).Error; err != nil {
			return err
		}

		members := make([]models.User, 0, len(memberIDs))
		if len(memberIDs) > 0 {
			if err := tx.Where("id IN ? AND role = ?", memberIDs, models.RoleStudent).Find(&members).Error; err != nil {
				return err
			}
		}
		if err := tx.Model(group).Association("Members").Replace(members); err != nil {
			return err
		}

		return tx.Preload("MathTeacher").Preload("EnglishTeacher").Preload("Members").First(group, group.ID).Error
	})
}

func (r *academicRepository) GetReinforcementGroup(ctx context.Context, level int) (models.ReinforcementGroup, error) {
	var group models.ReinforcementGroup
	if err := r.db.WithContext(ctx).
		Preload("MathTeacher").
		Preload("EnglishTeacher").
		Preload("Members").
		Where("level = ?", level).
		First(&group).Error; err != nil {
		return models.ReinforcementGroup{}, err
	}
	return group, nil
}

func (r *academicRepository) ListReinforcementGroups(ctx context.Context) ([]models.ReinforcementGroup, error) {
	var groups []models.ReinforcementGroup
	if err := r.db.WithContext(ctx).
		Preload("MathTeacher").
		Preload("EnglishTeacher").
		Preload("Members").
		Order("level ASC").
		Find(&groups).Error; err != nil {
		return nil, err
	}
	return groups, nil
}

func (r *academicRepository) DeleteReinforcementGroup(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM reinforcement_group_members WHERE reinforcement_group_id = ?", id).Error; err != nil {
			return err
		}
		return deleteByID(tx, &models.ReinforcementGroup{}, id)
	})
}

func (r *academicRepository) GroupOfMember(ctx context.Context, studentID uint) (models.ReinforcementGroup, error) {
	var group models.ReinforcementGroup
	if err := r.db.WithContext(ctx).
		Preload("MathTeacher").
		Preload("EnglishTeacher").
		Joins("JOIN reinforcement_group_members ON reinforcement_group_members.reinforcement_group_id = reinforcement_groups.id").
		Where("reinforcement_group_members.user_id = ?", studentID).
		First(&group).Error; err != nil {
		return models.ReinforcementGroup{}, err
	}
	return group, nil
}

func (r *academicRepository) Count(ctx context.Context, model interface{}) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(model).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func exists(query *gorm.DB, excludeID uint) (bool, error) {
	if excludeID > 0 {
		query = query.Where("id <> ?", excludeID)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func deleteByID(tx *gorm.DB, model interface{}, id uint) error {
	result := tx.Delete(model, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
