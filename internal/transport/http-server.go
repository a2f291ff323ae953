package transport

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/blue-iris-software/notekeeper-back/internal/config"
	"github.com/blue-iris-software/notekeeper-back/internal/db"
	"github.com/blue-iris-software/notekeeper-back/internal/service"
)

const (
	sessionCookieName = "session"
	defaultPerPage    = 10
)

type (
	RegisterForm struct {
		Username string `json:"username" form:"username" validate:"required"`
		Email    string `json:"email" form:"email" validate:"required,email"`
		Password string `json:"password" form:"password" validate:"required"`
	}

	LoginForm struct {
		Username string `json:"username" form:"username" validate:"required"`
		Password string `json:"password" form:"password" validate:"required"`
	}

	NoteForm struct {
		Title    string `json:"title" form:"title" validate:"required,min=1,max=255"`
		Content  string `json:"content" form:"content" validate:"required,min=1"`
		Category string `json:"category" form:"category" validate:"required,min=1"`
	}

	NoteResp struct {
		ID         uint64 `json:"id"`
		Title      string `json:"title"`
		Content    string `json:"content"`
		CategoryID uint64 `json:"category_id"`
	}

	IndexResp struct {
		Notes   []NoteResp `json:"notes"`
		Page    int        `json:"page"`
		PerPage int        `json:"per_page"`
		Total   int64      `json:"total"`
		Flashes []Flash    `json:"flashes,omitempty"`
	}

	NotePageResp struct {
		ID       uint64  `json:"id"`
		Title    string  `json:"title"`
		Content  string  `json:"content"`
		Category string  `json:"category"`
		Flashes  []Flash `json:"flashes,omitempty"`
	}

	PageResp struct {
		Flashes []Flash `json:"flashes,omitempty"`
	}

	CustomValidator struct {
		validator *validator.Validate
	}

	HTTPServer struct {
		cfg    *config.Config
		auth   *service.Auth
		notes  *service.Notes
		logger *zap.SugaredLogger
	}
)

func NewHTTPServer(lc fx.Lifecycle, cfg *config.Config, auth *service.Auth, notes *service.Notes, logger *zap.SugaredLogger) *HTTPServer {
	e := echo.New()

	instance := HTTPServer{
		cfg:    cfg,
		auth:   auth,
		notes:  notes,
		logger: logger,
	}

	e.GET("/", instance.Index)
	e.GET("/add_note", instance.AddNoteGet)
	e.POST("/add_note", instance.AddNotePost)
	e.GET("/edit_note/:note_id", instance.EditNoteGet)
	e.POST("/edit_note/:note_id", instance.EditNotePost)
	e.POST("/delete_note/:note_id", instance.DeleteNote)
	e.GET("/login", instance.LoginGet)
	e.POST("/login", instance.LoginPost)
	e.GET("/logout", instance.Logout)
	e.GET("/register", instance.RegisterGet)
	e.POST("/register", instance.RegisterPost)

	e.GET("/ping", func(c echo.Context) error { return c.String(http.StatusOK, "pong") })

	e.Use(middleware.CORS())
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	e.Use(instance.AuthMiddleware)

	e.Validator = &CustomValidator{validator: validator.New()}

	echo.NotFoundHandler = func(c echo.Context) error {
		return c.NoContent(http.StatusNotFound)
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				listen := cfg.Host + ":" + cfg.Port
				if err := e.Start(listen); err != nil && err != http.ErrServerClosed {
					e.Logger.Fatal("shutting down the server")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("Stopping HTTP server.")
			return e.Shutdown(ctx)
		},
	})

	return &instance
}

func (s *HTTPServer) Index(c echo.Context) error {
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}

	page := queryInt(c, "page", 1)
	perPage := queryInt(c, "per_page", defaultPerPage)

	notes, total, err := s.notes.List(user, page, perPage)
	if err != nil {
		return err
	}

	resp := IndexResp{
		Notes:   make([]NoteResp, len(notes)),
		Page:    page,
		PerPage: perPage,
		Total:   total,
		Flashes: popFlashes(c),
	}
	for i := range notes {
		resp.Notes[i] = NoteResp{
			ID:         notes[i].ID,
			Title:      notes[i].Title,
			Content:    notes[i].Content,
			CategoryID: notes[i].CategoryID,
		}
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *HTTPServer) AddNoteGet(c echo.Context) error {
	return c.JSON(http.StatusOK, PageResp{Flashes: popFlashes(c)})
}

func (s *HTTPServer) AddNotePost(c echo.Context) error {
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}

	form := NoteForm{}
	if err := BindAndValidate(c, &form); err != nil {
		return err
	}

	if _, err := s.notes.Create(user, form.Title, form.Content, form.Category); err != nil {
		return err
	}

	addFlash(c, FlashSuccess, "Note added successfully")
	return c.Redirect(http.StatusFound, "/")
}

func (s *HTTPServer) EditNoteGet(c echo.Context) error {
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}
	id, err := GetAndParseParam(c, "note_id")
	if err != nil {
		return err
	}

	note, err := s.notes.GetOwned(id, user)
	if err != nil {
		return s.noteAccessError(c, err)
	}

	return c.JSON(http.StatusOK, NotePageResp{
		ID:       note.ID,
		Title:    note.Title,
		Content:  note.Content,
		Category: note.Category.Name,
		Flashes:  popFlashes(c),
	})
}

func (s *HTTPServer) EditNotePost(c echo.Context) error {
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}
	id, err := GetAndParseParam(c, "note_id")
	if err != nil {
		return err
	}

	form := NoteForm{}
	if err := BindAndValidate(c, &form); err != nil {
		return err
	}

	if _, err := s.notes.Update(id, user, form.Title, form.Content, form.Category); err != nil {
		return s.noteAccessError(c, err)
	}

	addFlash(c, FlashSuccess, "Note updated successfully")
	return c.Redirect(http.StatusFound, "/")
}

func (s *HTTPServer) DeleteNote(c echo.Context) error {
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}
	id, err := GetAndParseParam(c, "note_id")
	if err != nil {
		return err
	}

	if err := s.notes.Delete(id, user); err != nil {
		return s.noteAccessError(c, err)
	}

	addFlash(c, FlashSuccess, "Note deleted successfully")
	return c.Redirect(http.StatusFound, "/")
}

func (s *HTTPServer) LoginGet(c echo.Context) error {
	return c.JSON(http.StatusOK, PageResp{Flashes: popFlashes(c)})
}

func (s *HTTPServer) LoginPost(c echo.Context) error {
	form := LoginForm{}
	if err := BindAndValidate(c, &form); err != nil {
		return err
	}

	token, err := s.auth.Login(form.Username, form.Password)
	if err != nil {
		switch err {
		case service.ErrLoginUserNotFound:
			addFlash(c, FlashError, "User not found. Please register if you do not have an account.")
			return c.Redirect(http.StatusFound, "/register")
		case service.ErrLoginPasswordDoesNotMatch:
			return c.JSON(http.StatusOK, PageResp{
				Flashes: []Flash{{Level: FlashError, Message: "Invalid password"}},
			})
		default:
			return err
		}
	}

	c.SetCookie(&http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.cfg.CookieSecure,
	})
	return c.Redirect(http.StatusFound, "/")
}

func (s *HTTPServer) Logout(c echo.Context) error {
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}

	if err := s.auth.Logout(user); err != nil {
		return err
	}

	c.SetCookie(&http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
	addFlash(c, FlashSuccess, "Logged out successfully")
	return c.Redirect(http.StatusFound, "/login")
}

func (s *HTTPServer) RegisterGet(c echo.Context) error {
	return c.JSON(http.StatusOK, PageResp{Flashes: popFlashes(c)})
}

func (s *HTTPServer) RegisterPost(c echo.Context) error {
	form := RegisterForm{}
	if err := BindAndValidate(c, &form); err != nil {
		return err
	}

	if _, err := s.auth.Register(form.Username, form.Email, form.Password); err != nil {
		switch err {
		case service.ErrDuplicateUsername:
			addFlash(c, FlashError, "Username already exists. Please choose a different one.")
			return c.Redirect(http.StatusFound, "/register")
		case service.ErrDuplicateEmail:
			addFlash(c, FlashError, "Email already exists. Please use a different one.")
			return c.Redirect(http.StatusFound, "/register")
		default:
			return err
		}
	}

	addFlash(c, FlashSuccess, "Registration successful. Please log in.")
	return c.Redirect(http.StatusFound, "/login")
}

// noteAccessError keeps the two single-note failure modes distinct: a
// missing note is a 404, while someone else's note sends the caller back
// to their listing with a warning.
func (s *HTTPServer) noteAccessError(c echo.Context, err error) error {
	switch err {
	case service.ErrNoteNotFound:
		return echo.NewHTTPError(http.StatusNotFound)
	case service.ErrNotOwner:
		addFlash(c, FlashError, "You don't have permission to access this note.")
		return c.Redirect(http.StatusFound, "/")
	default:
		return err
	}
}

func (s *HTTPServer) AuthMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		switch c.Path() {
		case "/login", "/register", "/ping":
			return next(c)
		}

		token := ""
		if cookie, err := c.Cookie(sessionCookieName); err == nil {
			token = cookie.Value
		}
		if token == "" {
			for key, values := range c.Request().Header {
				if strings.ToLower(key) == "x-token" {
					token = values[0]
					break
				}
			}
		}

		user, err := s.auth.UserByToken(token)
		if err != nil {
			if err != service.ErrNoSession {
				s.logger.Errorw("resolve session user", "error", err)
			}
			addFlash(c, FlashWarning, "Please log in to view your notes")
			return c.Redirect(http.StatusFound, "/login")
		}

		c.Set("user", user)
		return next(c)
	}
}

////////

func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}

func BindAndValidate(c echo.Context, v interface{}) error {
	if err := c.Bind(v); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(v); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fieldErrors(err))
	}
	return nil
}

// fieldErrors flattens validator output into field -> violated rule, the
// shape a form renderer needs for inline errors.
func fieldErrors(err error) map[string]string {
	out := map[string]string{}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		out["_"] = err.Error()
		return out
	}
	for _, fe := range verrs {
		out[strings.ToLower(fe.Field())] = fe.Tag()
	}
	return out
}

func GetUserFromContext(c echo.Context) (*db.User, error) {
	user, _ := c.Get("user").(*db.User)
	if user == nil {
		return nil, echo.NewHTTPError(http.StatusUnauthorized)
	}
	return user, nil
}

func GetParam(c echo.Context, name string) (string, error) {
	value := c.Param(name)
	if value == "" {
		return "", echo.NewHTTPError(http.StatusBadRequest, "invalid path param '"+name+"'")
	}
	return value, nil
}

func GetAndParseParam(c echo.Context, name string) (uint64, error) {
	v, e := GetParam(c, name)
	if e != nil {
		return 0, e
	}
	vv, e := strconv.ParseUint(v, 10, 64)
	if e != nil {
		return 0, echo.NewHTTPError(http.StatusNotFound)
	}
	return vv, nil
}

func queryInt(c echo.Context, name string, fallback int) int {
	raw := c.QueryParam(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		return fallback
	}
	return v
}
