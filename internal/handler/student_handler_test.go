package handler_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/levelup-api/internal/dto"
	"github.com/noah-isme/levelup-api/internal/grading"
	"github.com/noah-isme/levelup-api/internal/handler"
	"github.com/noah-isme/levelup-api/internal/models"
	"github.com/noah-isme/levelup-api/internal/service"
)

type stubPlayService struct {
	service.PlayService
	err         error
	studentID   uint
	activityID  uint
	itemID      uint
	payload     grading.GamePayload
	subject     string
	resultsReq  dto.ResultsRequest
	finishCalls int
}

func (s *stubPlayService) List(_ context.Context, studentID uint, subjectSlug string) (dto.StudentActivityListResponse, error) {
	s.studentID = studentID
	s.subject = subjectSlug
	return dto.StudentActivityListResponse{}, s.err
}

func (s *stubPlayService) Answer(_ context.Context, studentID, activityID, itemID uint, req dto.AnswerRequest) (dto.AnswerResponse, error) {
	s.studentID = studentID
	s.activityID = activityID
	s.itemID = itemID
	s.payload = req.Payload
	if s.err != nil {
		return dto.AnswerResponse{}, s.err
	}
	return dto.AnswerResponse{SubmissionID: 11, Correct: true, Points: 10, Reward: dto.AnswerReward{XP: 10, Coins: 5, Unlocks: []string{}}}, nil
}

func (s *stubPlayService) Finish(_ context.Context, studentID, activityID uint) (dto.FinishResponse, error) {
	s.finishCalls++
	s.studentID = studentID
	s.activityID = activityID
	return dto.FinishResponse{SubmissionID: 11, Grade: 100}, s.err
}

func (s *stubPlayService) Results(_ context.Context, _ uint, _ uint, req dto.ResultsRequest) (dto.ResultsResponse, error) {
	s.resultsReq = req
	return dto.ResultsResponse{Attempt: req.Attempt, Filter: req.Filter}, s.err
}

type stubPortalService struct {
	service.PortalService
}

func newStudentApp(play service.PlayService, limiter fiber.Handler) *fiber.App {
	app := fiber.New()
	asUser(app, 30, models.RoleStudent)
	handler.NewStudentHandler(play, &stubPortalService{}, limiter, zerolog.Nop()).Register(app.Group("/api/v2/student"))
	return app
}

func TestStudentHandlerAnswer(t *testing.T) {
	svc := &stubPlayService{}
	app := newStudentApp(svc, nil)

	payload := map[string]interface{}{
		"payload": map[string]interface{}{
			"kind":       "trivia",
			"completado": true,
			"score":      1,
			"meta":       map[string]interface{}{"correctas": 4, "total": 4},
		},
	}
	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/api/v2/student/activities/3/items/8/answer", payload))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body struct {
		Success bool               `json:"success"`
		Data    dto.AnswerResponse `json:"data"`
	}
	decodeResponse(t, resp, &body)
	require.True(t, body.Success)
	require.True(t, body.Data.Correct)
	require.Equal(t, 10, body.Data.Reward.XP)

	require.Equal(t, uint(30), svc.studentID)
	require.Equal(t, uint(3), svc.activityID)
	require.Equal(t, uint(8), svc.itemID)
	require.Equal(t, "trivia", svc.payload.Kind)
	require.True(t, svc.payload.Completed)
	require.Equal(t, float64(4), svc.payload.Meta["total"])
}

func TestStudentHandlerAnswerItemZeroFinishes(t *testing.T) {
	svc := &stubPlayService{}
	app := newStudentApp(svc, nil)

	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/api/v2/student/activities/5/items/0/answer", map[string]interface{}{}))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, 1, svc.finishCalls)
	require.Equal(t, uint(5), svc.activityID)
	require.Zero(t, svc.itemID)

	var body struct {
		Data dto.FinishResponse `json:"data"`
	}
	decodeResponse(t, resp, &body)
	require.Equal(t, uint(11), body.Data.SubmissionID)

	resp, err = app.Test(jsonRequest(t, http.MethodPost, "/api/v2/student/activities/5/finish", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, 2, svc.finishCalls)
}

func TestStudentHandlerAnswerRunsLimiter(t *testing.T) {
	limited := 0
	limiter := func(c *fiber.Ctx) error {
		limited++
		return c.SendStatus(fiber.StatusTooManyRequests)
	}
	svc := &stubPlayService{}
	app := newStudentApp(svc, limiter)

	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/api/v2/student/activities/3/items/8/answer", map[string]interface{}{}))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
	require.Equal(t, 1, limited)
	require.Zero(t, svc.itemID)

	resp, err = app.Test(jsonRequest(t, http.MethodPost, "/api/v2/student/activities/3/finish", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, 1, limited, "only answers are rate limited")
	require.Equal(t, 1, svc.finishCalls)
}

func TestStudentHandlerErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		path   string
		status int
	}{
		{name: "attempts exhausted", err: service.ErrAttemptsExhausted, path: "/api/v2/student/activities/3/finish", status: fiber.StatusConflict},
		{name: "nothing to finish", err: service.ErrNoOpenAttempt, path: "/api/v2/student/activities/3/finish", status: fiber.StatusConflict},
		{name: "not assigned", err: service.ErrNotAssigned, path: "/api/v2/student/activities/3/items/8/answer", status: fiber.StatusForbidden},
		{name: "closed", err: service.ErrActivityClosed, path: "/api/v2/student/activities/3/items/8/answer", status: fiber.StatusConflict},
		{name: "bad item", path: "/api/v2/student/activities/3/items/x/answer", status: fiber.StatusBadRequest},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := newStudentApp(&stubPlayService{err: tc.err}, nil)
			resp, err := app.Test(jsonRequest(t, http.MethodPost, tc.path, map[string]interface{}{}))
			require.NoError(t, err)
			require.Equal(t, tc.status, resp.StatusCode)
		})
	}
}

func TestStudentHandlerQueryParameters(t *testing.T) {
	svc := &stubPlayService{}
	app := newStudentApp(svc, nil)

	resp, err := app.Test(jsonRequest(t, http.MethodGet, "/api/v2/student/activities?subject=matematicas", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, "matematicas", svc.subject)

	resp, err = app.Test(jsonRequest(t, http.MethodGet, "/api/v2/student/activities/3/results?attempt=2&filter=incorrect", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, dto.ResultsRequest{Attempt: 2, Filter: "incorrect"}, svc.resultsReq)

	resp, err = app.Test(jsonRequest(t, http.MethodGet, "/api/v2/student/activities/3/results?attempt=-1", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	svc.err = service.ErrNoResults
	resp, err = app.Test(jsonRequest(t, http.MethodGet, "/api/v2/student/activities/3/results", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}
