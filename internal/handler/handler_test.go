package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/suteetoe/thing-service/internal/model"
	"github.com/suteetoe/thing-service/internal/repository"
)

type mockThingRepository struct {
	mock.Mock
}

func (m *mockThingRepository) All(ctx context.Context) ([]model.Thing, error) {
	args := m.Called(ctx)
	things, _ := args.Get(0).([]model.Thing)
	return things, args.Error(1)
}

func (m *mockThingRepository) Find(ctx context.Context, id uint) (*model.Thing, error) {
	args := m.Called(ctx, id)
	thing, _ := args.Get(0).(*model.Thing)
	return thing, args.Error(1)
}

func (m *mockThingRepository) FindByName(ctx context.Context, name string) (*model.Thing, error) {
	args := m.Called(ctx, name)
	thing, _ := args.Get(0).(*model.Thing)
	return thing, args.Error(1)
}

func (m *mockThingRepository) Create(ctx context.Context, thing *model.Thing) error {
	args := m.Called(ctx, thing)
	if args.Error(0) == nil {
		thing.ID = 1
	}
	return args.Error(0)
}

func (m *mockThingRepository) Update(ctx context.Context, id uint, attrs model.ThingAttributes) (*model.Thing, error) {
	args := m.Called(ctx, id, attrs)
	thing, _ := args.Get(0).(*model.Thing)
	return thing, args.Error(1)
}

func (m *mockThingRepository) Delete(ctx context.Context, id uint) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockThingRepository) Count(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func newContext(method, target, body, contentType string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	e.Validator = NewRequestValidator()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set(echo.HeaderContentType, contentType)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestParseID(t *testing.T) {
	for param, want := range map[string]bool{"12": true, "0": false, "-1": false, "abc": false, "": false} {
		c, _ := newContext(http.MethodGet, "/", "", "")
		c.SetParamNames("id")
		c.SetParamValues(param)

		id, ok := parseID(c)
		assert.Equal(t, want, ok, param)
		if want {
			assert.Equal(t, uint(12), id)
		}
	}
}

func TestThingAttributesFromForm(t *testing.T) {
	form := url.Values{"thing[name]": {"Widget"}, "description": {"flat"}}
	c, _ := newContext(http.MethodPost, "/things", form.Encode(), echo.MIMEApplicationForm)

	attrs := thingAttributesFromForm(c)
	require.NotNil(t, attrs.Name)
	require.NotNil(t, attrs.Description)
	assert.Equal(t, "Widget", *attrs.Name)
	assert.Equal(t, "flat", *attrs.Description)

	c, _ = newContext(http.MethodPost, "/things", "", echo.MIMEApplicationForm)
	attrs = thingAttributesFromForm(c)
	assert.Nil(t, attrs.Name, "absent fields stay nil so updates leave them alone")
}

func TestIsAPIRequest(t *testing.T) {
	for path, want := range map[string]bool{"/api": true, "/api/things": true, "/apidocs": false, "/things": false} {
		c, _ := newContext(http.MethodGet, path, "", "")
		assert.Equal(t, want, isAPIRequest(c), path)
	}
}

func TestThingAPIHandler_CreateWrappedAndFlat(t *testing.T) {
	for name, body := range map[string]string{
		"wrapped": `{"thing":{"name":"Widget","description":"blue"}}`,
		"flat":    `{"name":"Widget","description":"blue"}`,
	} {
		t.Run(name, func(t *testing.T) {
			repo := &mockThingRepository{}
			repo.On("Create", mock.Anything, mock.MatchedBy(func(th *model.Thing) bool {
				return th.Name == "Widget" && th.Description == "blue"
			})).Return(nil)

			c, rec := newContext(http.MethodPost, "/api/things", body, echo.MIMEApplicationJSON)
			require.NoError(t, NewThingAPIHandler(repo).Create(c))

			assert.Equal(t, http.StatusCreated, rec.Code)
			assert.Equal(t, "Widget", decode(t, rec)["name"])
			repo.AssertExpectations(t)
		})
	}
}

func TestThingAPIHandler_CreateInvalid(t *testing.T) {
	verrs := model.NewValidationErrors()
	verrs.Add("name", "can't be blank")

	repo := &mockThingRepository{}
	repo.On("Create", mock.Anything, mock.Anything).Return(verrs)

	c, rec := newContext(http.MethodPost, "/api/things", `{"name":""}`, echo.MIMEApplicationJSON)
	require.NoError(t, NewThingAPIHandler(repo).Create(c))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "Validation failed", body["error"])
	assert.Equal(t, []interface{}{"Name can't be blank"}, body["errors"])
	assert.Equal(t, map[string]interface{}{"name": []interface{}{"can't be blank"}}, body["fields"])
}

func TestThingAPIHandler_GetErrors(t *testing.T) {
	repo := &mockThingRepository{}
	repo.On("Find", mock.Anything, uint(4)).Return(nil, repository.ErrNotFound)
	repo.On("Find", mock.Anything, uint(5)).Return(nil, errors.New("connection reset"))
	h := NewThingAPIHandler(repo)

	tests := []struct {
		id     string
		status int
	}{
		{"4", http.StatusNotFound},
		{"5", http.StatusInternalServerError},
		{"nope", http.StatusNotFound},
	}
	for _, tt := range tests {
		c, rec := newContext(http.MethodGet, "/api/things/"+tt.id, "", "")
		c.SetParamNames("id")
		c.SetParamValues(tt.id)

		require.NoError(t, h.Get(c))
		assert.Equal(t, tt.status, rec.Code, tt.id)
	}
}

func TestThingAPIHandler_Delete(t *testing.T) {
	repo := &mockThingRepository{}
	repo.On("Delete", mock.Anything, uint(2)).Return(nil)

	c, rec := newContext(http.MethodDelete, "/api/things/2", "", "")
	c.SetParamNames("id")
	c.SetParamValues("2")

	require.NoError(t, NewThingAPIHandler(repo).Delete(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Thing deleted successfully", decode(t, rec)["message"])
	repo.AssertExpectations(t)
}

func TestHTTPErrorHandler_APIIsJSON(t *testing.T) {
	c, rec := newContext(http.MethodGet, "/api/missing", "", "")
	HTTPErrorHandler(echo.NewHTTPError(http.StatusNotFound, "Not Found"), c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Not Found", decode(t, rec)["error"])
}

func TestHTTPErrorHandler_PlainErrorIs500(t *testing.T) {
	c, rec := newContext(http.MethodGet, "/api/things", "", "")
	HTTPErrorHandler(errors.New("boom"), c)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Internal Server Error", decode(t, rec)["error"])
}
