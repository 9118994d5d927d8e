package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/noah-isme/levelup-api/internal/dto"
	"github.com/noah-isme/levelup-api/internal/gamification"
	"github.com/noah-isme/levelup-api/internal/models"
	"github.com/noah-isme/levelup-api/internal/repository"
	"github.com/noah-isme/levelup-api/pkg/rut"
)

var (
	// ErrSeedDisabled indicates the seeding tools are disabled by configuration.
	ErrSeedDisabled = errors.New("seeding is disabled")
	// ErrSeedUnauthorized indicates the provided token is invalid.
	ErrSeedUnauthorized = errors.New("invalid seed token")
)

const (
	seedPassword          = "levelup2024"
	defaultStudentsSeeded = 5
	reinforcementCapacity = 10
	reinforcementRUTBase  = 41000000
	coursesRUTBase        = 70000000
)

// SeedService loads the reward catalog and demo school data.
type SeedService interface {
	SeedRewards(ctx context.Context, token string) (dto.SeedSummary, error)
	SeedReinforcement(ctx context.Context, token string) (dto.SeedSummary, error)
	SeedCourses(ctx context.Context, token string, req dto.SeedCoursesRequest) (dto.SeedSummary, error)
}

type seedService struct {
	users        repository.UserRepository
	academic     repository.AcademicRepository
	gamification repository.GamificationRepository
	enabled      bool
	token        string
	logger       zerolog.Logger
	now          func() time.Time
	passwordHash string
}

// NewSeedService constructs a seeding service.
func NewSeedService(users repository.UserRepository, academic repository.AcademicRepository, gamificationRepo repository.GamificationRepository, enabled bool, token string, logger zerolog.Logger) SeedService {
	return &seedService{
		users:        users,
		academic:     academic,
		gamification: gamificationRepo,
		enabled:      enabled,
		token:        token,
		logger:       logger.With().Str("component", "seed_service").Logger(),
		now:          time.Now,
	}
}

var rewardCatalog = []models.Reward{
	{Slug: gamification.SlugWelcome, Name: "Bienvenido a LevelUp", Description: "Terminaste tu primera actividad.", Icon: "🎉"},
	{Slug: gamification.SlugFirstMath, Name: "Primer paso matemático", Description: "Primera actividad de Matemáticas completada.", Icon: "➕"},
	{Slug: gamification.SlugFirstLanguage, Name: "Primer cuento", Description: "Primera actividad de Lenguaje completada.", Icon: "📖"},
	{Slug: gamification.SlugFirstHistory, Name: "Primer viaje en el tiempo", Description: "Primera actividad de Historia completada.", Icon: "🏛️"},
	{Slug: gamification.SlugFirstScience, Name: "Primer experimento", Description: "Primera actividad de Ciencias completada.", Icon: "🔬"},
	{Slug: gamification.SlugMathMaster, Name: "Maestro de las matemáticas", Description: "Cinco actividades de Matemáticas completadas.", Icon: "🧮"},
	{Slug: gamification.SlugWordGuardian, Name: "Guardián de las palabras", Description: "Cinco actividades de Lenguaje completadas.", Icon: "🛡️"},
	{Slug: gamification.SlugTimeChronicler, Name: "Cronista del tiempo", Description: "Cinco actividades de Historia completadas.", Icon: "⏳"},
	{Slug: gamification.SlugStarScientist, Name: "Científico estrella", Description: "Cinco actividades de Ciencias completadas.", Icon: "⭐"},
	{Slug: gamification.SlugPerfectAnswer, Name: "Respuesta perfecta", Description: "Obtuviste 100% en una actividad.", Icon: "💯"},
	{Slug: gamification.SlugGeniusStreak, Name: "Racha de genio", Description: "Tres actividades seguidas con 100%.", Icon: "🔥"},
	{Slug: "nivel-2", Name: "Aprendiz", Description: "Alcanzaste el nivel 2.", Icon: "🌱", RequiredLevel: 2},
	{Slug: "nivel-5", Name: "Aventurero", Description: "Alcanzaste el nivel 5.", Icon: "🗺️", RequiredLevel: 5},
	{Slug: "nivel-10", Name: "Leyenda", Description: "Alcanzaste el nivel 10.", Icon: "👑", RequiredLevel: 10},
	{Slug: "xp-1000", Name: "Mil puntos", Description: "Acumulaste 1000 XP.", Icon: "💎", RequiredXP: 1000},
	{Slug: "actividades-10", Name: "Constante", Description: "Completaste 10 actividades.", Icon: "🏅", RequiredActivities: 10},
}

func (s *seedService) authorize(token string) error {
	if !s.enabled {
		return ErrSeedDisabled
	}
	expected := strings.TrimSpace(s.token)
	if expected == "" || subtle.ConstantTimeCompare([]byte(expected), []byte(strings.TrimSpace(token))) != 1 {
		return ErrSeedUnauthorized
	}
	return nil
}

func (s *seedService) SeedRewards(ctx context.Context, token string) (dto.SeedSummary, error) {
	if err := s.authorize(token); err != nil {
		return dto.SeedSummary{}, err
	}

	existing, err := s.gamification.ListRewards(ctx)
	if err != nil {
		return dto.SeedSummary{}, err
	}
	known := make(map[string]struct{}, len(existing))
	for _, reward := range existing {
		known[reward.Slug] = struct{}{}
	}

	summary := dto.SeedSummary{}
	for _, definition := range rewardCatalog {
		reward := definition
		if err := s.gamification.UpsertReward(ctx, &reward); err != nil {
			return dto.SeedSummary{}, fmt.Errorf("seed reward %s: %w", definition.Slug, err)
		}
		if _, ok := known[reward.Slug]; !ok {
			summary.Rewards++
		}
	}

	s.logger.Info().Int("created", summary.Rewards).Int("catalog", len(rewardCatalog)).Msg("reward catalog seeded")
	return summary, nil
}

func (s *seedService) SeedReinforcement(ctx context.Context, token string) (dto.SeedSummary, error) {
	if err := s.authorize(token); err != nil {
		return dto.SeedSummary{}, err
	}

	summary := dto.SeedSummary{}
	math, err := s.ensureSubject(ctx, "Matemáticas", "MATEMATICAS", "🧮", &summary)
	if err != nil {
		return dto.SeedSummary{}, err
	}
	english, err := s.ensureSubject(ctx, "Inglés", "INGLES", "🇬🇧", &summary)
	if err != nil {
		return dto.SeedSummary{}, err
	}

	mathTeacher, err := s.ensureUser(ctx, seedUser{
		username: "prof_mate", email: "prof_mate@levelup.test",
		first: "Profe", last: "Matemáticas", role: models.RoleTeacher, rutBody: 80000000,
	}, &summary)
	if err != nil {
		return dto.SeedSummary{}, err
	}
	englishTeacher, err := s.ensureUser(ctx, seedUser{
		username: "prof_ingles", email: "prof_ingles@levelup.test",
		first: "Profe", last: "Inglés", role: models.RoleTeacher, rutBody: 80000001,
	}, &summary)
	if err != nil {
		return dto.SeedSummary{}, err
	}
	if err := s.ensureTeacherAssignment(ctx, mathTeacher.ID, math.ID, &summary); err != nil {
		return dto.SeedSummary{}, err
	}
	if err := s.ensureTeacherAssignment(ctx, englishTeacher.ID, english.ID, &summary); err != nil {
		return dto.SeedSummary{}, err
	}

	members := map[int][]uint{}
	for _, level := range []int{4, 5} {
		for letterIndex, letter := range []string{"A", "B"} {
			course, err := s.ensureCourse(ctx, level, letter, &summary)
			if err != nil {
				return dto.SeedSummary{}, err
			}
			base := reinforcementRUTBase + (level-4)*10000000 + letterIndex*1000000
			for i := 1; i <= defaultStudentsSeeded; i++ {
				username := fmt.Sprintf("al%d%s%d", level, letter, i)
				student, err := s.ensureUser(ctx, seedUser{
					username: username, email: username + "@levelup.test",
					first: fmt.Sprintf("Alumno%d", i), last: fmt.Sprintf("%d%s", level, letter),
					role: models.RoleStudent, rutBody: base + i,
				}, &summary)
				if err != nil {
					return dto.SeedSummary{}, err
				}
				if err := s.ensureEnrollment(ctx, student.ID, course.ID, &summary); err != nil {
					return dto.SeedSummary{}, err
				}
				if len(members[level]) < reinforcementCapacity {
					members[level] = append(members[level], student.ID)
				}
			}
		}
	}

	for _, level := range []int{4, 5} {
		group, err := s.academic.GetReinforcementGroup(ctx, level)
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return dto.SeedSummary{}, err
			}
			group = models.ReinforcementGroup{Level: level}
			summary.Groups++
		}
		group.MathTeacherID = &mathTeacher.ID
		group.EnglishTeacherID = &englishTeacher.ID
		if err := s.academic.SaveReinforcementGroup(ctx, &group, members[level]); err != nil {
			return dto.SeedSummary{}, err
		}
	}

	s.logger.Info().Interface("summary", summary).Msg("reinforcement setup seeded")
	return summary, nil
}

func (s *seedService) SeedCourses(ctx context.Context, token string, req dto.SeedCoursesRequest) (dto.SeedSummary, error) {
	if err := s.authorize(token); err != nil {
		return dto.SeedSummary{}, err
	}
	perCourse := req.StudentsPerCourse
	if perCourse <= 0 {
		perCourse = defaultStudentsSeeded
	}

	summary := dto.SeedSummary{}
	subjects := []struct{ name, code, icon string }{
		{"Lenguaje", "LENGUAJE", "📖"},
		{"Historia", "HISTORIA", "🏛️"},
		{"Ciencias Naturales", "CIENCIAS", "🔬"},
	}
	for _, subject := range subjects {
		if _, err := s.ensureSubject(ctx, subject.name, subject.code, subject.icon, &summary); err != nil {
			return dto.SeedSummary{}, err
		}
	}

	body := coursesRUTBase
	for _, level := range []int{6, 7, 8} {
		for _, letter := range []string{"A", "B"} {
			course, err := s.ensureCourse(ctx, level, letter, &summary)
			if err != nil {
				return dto.SeedSummary{}, err
			}
			for i := 1; i <= perCourse; i++ {
				username := fmt.Sprintf("%d%s_alumno%02d", level, strings.ToLower(letter), i)
				student, err := s.ensureUser(ctx, seedUser{
					username: username, email: username + "@levelup.test",
					first: "Alumno", last: fmt.Sprintf("%s - %02d", course.DisplayName(), i),
					role: models.RoleStudent, rutBody: body,
				}, &summary)
				if err != nil {
					return dto.SeedSummary{}, err
				}
				body++
				if err := s.ensureEnrollment(ctx, student.ID, course.ID, &summary); err != nil {
					return dto.SeedSummary{}, err
				}
			}
		}
	}

	s.logger.Info().Interface("summary", summary).Int("per_course", perCourse).Msg("courses 6-8 seeded")
	return summary, nil
}

func (s *seedService) ensureSubject(ctx context.Context, name, code, icon string, summary *dto.SeedSummary) (models.Subject, error) {
	subject, err := s.academic.GetSubjectByCode(ctx, code)
	if err == nil {
		return subject, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Subject{}, err
	}

	subject = models.Subject{Name: name, Code: code, Slug: slugify(name), Icon: icon}
	if err := s.academic.CreateSubject(ctx, &subject); err != nil {
		return models.Subject{}, fmt.Errorf("seed subject %s: %w", code, err)
	}
	summary.Subjects++
	return subject, nil
}

func (s *seedService) ensureCourse(ctx context.Context, level int, letter string, summary *dto.SeedSummary) (models.Course, error) {
	course, err := s.academic.FindCourse(ctx, level, letter)
	if err == nil {
		return course, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Course{}, err
	}

	course = models.Course{Level: level, Letter: letter}
	if err := s.academic.CreateCourse(ctx, &course); err != nil {
		return models.Course{}, fmt.Errorf("seed course %d%s: %w", level, letter, err)
	}
	summary.Courses++
	return course, nil
}

type seedUser struct {
	username string
	email    string
	first    string
	last     string
	role     string
	rutBody  int
}

func (s *seedService) ensureUser(ctx context.Context, account seedUser, summary *dto.SeedSummary) (models.User, error) {
	user, err := s.users.GetByEmail(ctx, account.email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return models.User{}, err
	}

	hash, err := s.hash()
	if err != nil {
		return models.User{}, err
	}

	value := rut.FromNumber(s.nextRUTBody(ctx, account.rutBody))
	user = models.User{
		Username:     account.username,
		FirstName:    account.first,
		LastName:     account.last,
		Email:        account.email,
		RUT:          &value,
		Role:         account.role,
		PasswordHash: hash,
	}
	if err := s.users.CreateWithProfiles(ctx, &user); err != nil {
		return models.User{}, fmt.Errorf("seed user %s: %w", account.username, err)
	}

	if account.role == models.RoleTeacher {
		summary.Teachers++
	} else {
		summary.Students++
	}
	return user, nil
}

// nextRUTBody returns the first body at or after start whose RUT is not taken.
func (s *seedService) nextRUTBody(ctx context.Context, start int) int {
	for body := start; ; body++ {
		taken, err := s.users.RUTExists(ctx, rut.FromNumber(body))
		if err != nil || !taken {
			return body
		}
	}
}

// hash computes the shared demo password once.
func (s *seedService) hash() (string, error) {
	if s.passwordHash != "" {
		return s.passwordHash, nil
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(seedPassword), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	s.passwordHash = string(hashed)
	return s.passwordHash, nil
}

func (s *seedService) ensureEnrollment(ctx context.Context, studentID, courseID uint, summary *dto.SeedSummary) error {
	exists, err := s.academic.EnrollmentExists(ctx, studentID, courseID)
	if err != nil || exists {
		return err
	}
	enrollment := models.Enrollment{StudentID: studentID, CourseID: courseID, EnrolledAt: s.now().UTC()}
	if err := s.academic.CreateEnrollment(ctx, &enrollment); err != nil {
		return err
	}
	summary.Enrollments++
	return nil
}

func (s *seedService) ensureTeacherAssignment(ctx context.Context, teacherID, subjectID uint, summary *dto.SeedSummary) error {
	exists, err := s.academic.TeacherAssignmentExists(ctx, teacherID, subjectID)
	if err != nil || exists {
		return err
	}
	assignment := models.TeacherAssignment{TeacherID: teacherID, SubjectID: subjectID}
	if err := s.academic.CreateTeacherAssignment(ctx, &assignment); err != nil {
		return err
	}
	summary.TeacherAssignments++
	return nil
}
