package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"timed-quiz-service/internal/app"
	"timed-quiz-service/internal/domain"
)

// API serves the JSON endpoints for users, questions and quiz sessions.
type API struct {
	sessions         *app.SessionService
	questions        *app.QuestionService
	users            *app.UserService
	log              logrus.FieldLogger
	defaultTimeLimit int
}

func NewAPI(sessions *app.SessionService, questions *app.QuestionService, users *app.UserService, log logrus.FieldLogger, defaultTimeLimit int) *API {
	if defaultTimeLimit <= 0 {
		defaultTimeLimit = domain.DefaultTimeLimitMinutes
	}
	return &API{
		sessions:         sessions,
		questions:        questions,
		users:            users,
		log:              log,
		defaultTimeLimit: defaultTimeLimit,
	}
}

// NewRouter wires the API and the websocket handler behind the recover,
// access log and CORS middleware.
func NewRouter(api *API, ws *WSHandler, accessLog io.Writer) http.Handler {
	router := mux.NewRouter()
	router.StrictSlash(true)

	router.HandleFunc("/healthz", api.health).Methods(http.MethodGet)
	router.Handle("/ws/session", RequireUser(http.HandlerFunc(ws.ServeWS))).Methods(http.MethodGet)

	v1 := router.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/users/register", api.register).Methods(http.MethodPost)
	v1.HandleFunc("/users/login", api.login).Methods(http.MethodPost)
	v1.Handle("/users/me", RequireUser(http.HandlerFunc(api.me))).Methods(http.MethodGet)

	v1.HandleFunc("/questions", api.listQuestions).Methods(http.MethodGet)
	v1.Handle("/questions", RequireUser(http.HandlerFunc(api.createQuestion))).Methods(http.MethodPost)
	v1.Handle("/questions/{id:[0-9]+}", RequireUser(http.HandlerFunc(api.editQuestion))).Methods(http.MethodPut)
	v1.Handle("/questions/{id:[0-9]+}", RequireUser(http.HandlerFunc(api.deleteQuestion))).Methods(http.MethodDelete)

	v1.Handle("/session/status", RequireUser(http.HandlerFunc(api.sessionStatus))).Methods(http.MethodGet)
	v1.Handle("/session/heartbeat", RequireUser(http.HandlerFunc(api.sessionHeartbeat))).Methods(http.MethodPost)
	v1.Handle("/session/create", RequireUser(http.HandlerFunc(api.createSession))).Methods(http.MethodPost)
	v1.Handle("/session/abandon", RequireUser(http.HandlerFunc(api.abandonSession))).Methods(http.MethodPost)
	v1.Handle("/session/extend", RequireUser(http.HandlerFunc(api.extendSession))).Methods(http.MethodPost)

	v1.Handle("/quiz/submit", RequireUser(http.HandlerFunc(api.submitQuiz))).Methods(http.MethodPost)
	v1.Handle("/results/me", RequireUser(http.HandlerFunc(api.myResult))).Methods(http.MethodGet)

	var h http.Handler = router
	h = RecoverAndLog(api.log)(h)
	h = handlers.CombinedLoggingHandler(accessLog, h)
	h = handlers.CORS(
		handlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"content-type", UserIDHeader}),
		handlers.AllowedOrigins([]string{"*"}),
	)(h)
	return h
}

func (a *API) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, messageBody{Success: true, Message: "ok"})
}

type sessionBody struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message"`
	Session domain.SessionSnapshot `json:"session"`
}

type reportBody struct {
	Success bool `json:"success"`
	app.SessionReport
}

func (a *API) sessionStatus(w http.ResponseWriter, r *http.Request) {
	report, err := a.sessions.Status(r.Context(), UserIDFrom(r.Context()))
	if err != nil {
		writeError(w, a.log, err)
		return
	}
	writeJSON(w, http.StatusOK, reportBody{Success: true, SessionReport: report})
}

func (a *API) sessionHeartbeat(w http.ResponseWriter, r *http.Request) {
	report, err := a.sessions.Heartbeat(r.Context(), UserIDFrom(r.Context()))
	if err != nil {
		writeError(w, a.log, err)
		return
	}
	// an expired heartbeat is a failed keep-alive
	writeJSON(w, http.StatusOK, reportBody{Success: report.Valid, SessionReport: report})
}

type createSessionRequest struct {
	TimeLimitMinutes *int `json:"time_limit_minutes"`
}

func (a *API) createSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErrorCode(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}
	minutes := a.defaultTimeLimit
	if req.TimeLimitMinutes != nil {
		minutes = *req.TimeLimitMinutes
	}
	session, err := a.sessions.StartSession(r.Context(), UserIDFrom(r.Context()), minutes)
	if err != nil {
		writeError(w, a.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, sessionBody{
		Success: true,
		Message: "Quiz session created",
		Session: session.Snapshot(a.sessions.Now()),
	})
}

func (a *API) abandonSession(w http.ResponseWriter, r *http.Request) {
	session, err := a.sessions.Abandon(r.Context(), UserIDFrom(r.Context()))
	if err != nil {
		writeError(w, a.log, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionBody{
		Success: true,
		Message: "Quiz session abandoned",
		Session: session.Snapshot(a.sessions.Now()),
	})
}

type extendSessionRequest struct {
	AdditionalMinutes *int `json:"additional_minutes"`
}

func (a *API) extendSession(w http.ResponseWriter, r *http.Request) {
	var req extendSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErrorCode(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}
	minutes := domain.DefaultExtensionMinutes
	if req.AdditionalMinutes != nil {
		minutes = *req.AdditionalMinutes
	}
	session, err := a.sessions.Extend(r.Context(), UserIDFrom(r.Context()), minutes)
	if err != nil {
		writeError(w, a.log, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionBody{
		Success: true,
		Message: fmt.Sprintf("Added %d minutes to quiz session", minutes),
		Session: session.Snapshot(a.sessions.Now()),
	})
}

type submitRequest struct {
	Answers domain.Answers `json:"answers"`
}

type submitBody struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	app.SubmitResult
}

func (a *API) submitQuiz(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErrorCode(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}
	res, err := a.sessions.Submit(r.Context(), UserIDFrom(r.Context()), req.Answers)
	if errors.Is(err, domain.ErrSessionExpired) {
		writeJSON(w, http.StatusOK, submitBody{
			Success:      false,
			Message:      fmt.Sprintf("Quiz time has expired. Partial score: %d out of %d", res.Score, res.TotalQuestions),
			SubmitResult: res,
		})
		return
	}
	if err != nil {
		writeError(w, a.log, err)
		return
	}
	writeJSON(w, http.StatusOK, submitBody{
		Success:      true,
		Message:      fmt.Sprintf("You scored %d out of %d", res.Score, res.TotalQuestions),
		SubmitResult: res,
	})
}

type resultBody struct {
	Success bool              `json:"success"`
	Result  domain.QuizResult `json:"result"`
}

func (a *API) myResult(w http.ResponseWriter, r *http.Request) {
	result, err := a.sessions.Result(r.Context(), UserIDFrom(r.Context()))
	if err != nil {
		writeError(w, a.log, err)
		return
	}
	writeJSON(w, http.StatusOK, resultBody{Success: true, Result: result})
}

// questionView hides the canonical answer from quiz takers.
type questionView struct {
	ID        int64     `json:"id"`
	Question  string    `json:"question"`
	CreatedAt time.Time `json:"created_at"`
}

type questionsBody struct {
	Success   bool           `json:"success"`
	Questions []questionView `json:"questions"`
}

type questionBody struct {
	Success  bool            `json:"success"`
	Question domain.Question `json:"question"`
}

type questionRequest struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

func (a *API) listQuestions(w http.ResponseWriter, r *http.Request) {
	qs, err := a.questions.ListQuestions(r.Context())
	if err != nil {
		writeError(w, a.log, err)
		return
	}
	views := make([]questionView, 0, len(qs))
	for _, q := range qs {
		views = append(views, questionView{ID: q.ID, Question: q.Prompt, CreatedAt: q.CreatedAt})
	}
	writeJSON(w, http.StatusOK, questionsBody{Success: true, Questions: views})
}

func (a *API) createQuestion(w http.ResponseWriter, r *http.Request) {
	var req questionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErrorCode(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}
	q, err := a.questions.Create(r.Context(), req.Question, req.Answer)
	if err != nil {
		writeError(w, a.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, questionBody{Success: true, Question: q})
}

func (a *API) editQuestion(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	var req questionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErrorCode(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}
	q, err := a.questions.Edit(r.Context(), id, req.Question, req.Answer)
	if err != nil {
		writeError(w, a.log, err)
		return
	}
	writeJSON(w, http.StatusOK, questionBody{Success: true, Question: q})
}

func (a *API) deleteQuestion(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err := a.questions.Delete(r.Context(), id); err != nil {
		writeError(w, a.log, err)
		return
	}
	writeJSON(w, http.StatusOK, messageBody{Success: true, Message: "Question deleted"})
}

type registerRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	UserName  string `json:"user_name"`
	Password  string `json:"password"`
}

type loginRequest struct {
	UserName string `json:"user_name"`
	Password string `json:"password"`
}

type userBody struct {
	Success bool        `json:"success"`
	User    domain.User `json:"user"`
}

func (a *API) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErrorCode(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}
	user, err := a.users.Register(r.Context(), app.RegisterInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		UserName:  req.UserName,
		Password:  req.Password,
	})
	if err != nil {
		writeError(w, a.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, userBody{Success: true, User: user})
}

func (a *API) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErrorCode(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}
	user, err := a.users.Authenticate(r.Context(), req.UserName, req.Password)
	if err != nil {
		writeError(w, a.log, err)
		return
	}
	writeJSON(w, http.StatusOK, userBody{Success: true, User: user})
}

func (a *API) me(w http.ResponseWriter, r *http.Request) {
	user, err := a.users.Get(r.Context(), UserIDFrom(r.Context()))
	if err != nil {
		writeError(w, a.log, err)
		return
	}
	writeJSON(w, http.StatusOK, userBody{Success: true, User: user})
}
