package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/vinodhsukumarvictor/Church-Bible-App/models"
	"github.com/vinodhsukumarvictor/Church-Bible-App/services"
	"github.com/vinodhsukumarvictor/Church-Bible-App/services/audit"
	"github.com/vinodhsukumarvictor/Church-Bible-App/services/rolechange"
	"github.com/vinodhsukumarvictor/Church-Bible-App/utils"
	"go.uber.org/zap"
)

type MockAuthorizer struct {
	mock.Mock
}

func (m *MockAuthorizer) Configured() bool {
	return m.Called().Bool(0)
}

func (m *MockAuthorizer) Authorize(ctx context.Context, token string) (*models.Principal, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Principal), args.Error(1)
}

type MockRoleChanger struct {
	mock.Mock
}

func (m *MockRoleChanger) Configured() bool {
	return m.Called().Bool(0)
}

func (m *MockRoleChanger) ChangeRole(ctx context.Context, cmd rolechange.Command) (*models.RoleChange, error) {
	args := m.Called(ctx, cmd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RoleChange), args.Error(1)
}

type MockAuditLister struct {
	mock.Mock
}

func (m *MockAuditLister) Configured() bool {
	return m.Called().Bool(0)
}

func (m *MockAuditLister) ListPage(ctx context.Context, req audit.PageRequest) (*models.AuditPage, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AuditPage), args.Error(1)
}

func changeRoleRequest(body string, token string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/admin/changeRole", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func TestHandleChangeRole(t *testing.T) {
	logger := zap.NewNop()
	target := uuid.New()
	admin := &models.Principal{ID: uuid.New(), Email: "admin@example.com", Role: models.RoleAdmin}
	validBody := `{"targetUserId":"` + target.String() + `","newRole":"leader","reason":"promoted"}`

	t.Run("successful change returns ok", func(t *testing.T) {
		authz := new(MockAuthorizer)
		roles := new(MockRoleChanger)
		handler := NewAdminHandler(authz, roles, new(MockAuditLister), logger)

		authz.On("Configured").Return(true)
		roles.On("Configured").Return(true)
		authz.On("Authorize", mock.Anything, "tok").Return(admin, nil)
		roles.On("ChangeRole", mock.Anything, mock.MatchedBy(func(cmd rolechange.Command) bool {
			return cmd.Actor == admin &&
				cmd.TargetUserID == target &&
				cmd.NewRole == models.Role("leader") &&
				cmd.Reason == "promoted"
		})).Return(models.NewRoleChange(admin.ID, target, models.RoleMember, "leader"), nil)

		w := httptest.NewRecorder()
		handler.HandleChangeRole(w, changeRoleRequest(validBody, "tok"))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"ok":true}`, w.Body.String())
		authz.AssertExpectations(t)
		roles.AssertExpectations(t)
	})

	t.Run("audit write failure still returns ok with warning", func(t *testing.T) {
		authz := new(MockAuthorizer)
		roles := new(MockRoleChanger)
		handler := NewAdminHandler(authz, roles, new(MockAuditLister), logger)

		authz.On("Configured").Return(true)
		roles.On("Configured").Return(true)
		authz.On("Authorize", mock.Anything, "tok").Return(admin, nil)
		partial := services.NewDomainError(services.ErrorTypePartialFailure, "audit log write failed", errors.New("insert failed"))
		roles.On("ChangeRole", mock.Anything, mock.Anything).
			Return(models.NewRoleChange(admin.ID, target, "", "leader"), partial)

		w := httptest.NewRecorder()
		handler.HandleChangeRole(w, changeRoleRequest(validBody, "tok"))

		assert.Equal(t, http.StatusOK, w.Code)
		var resp utils.OKResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.True(t, resp.OK)
		assert.Equal(t, "audit log write failed", resp.Warning)
	})

	t.Run("body errors are rejected before auth", func(t *testing.T) {
		tests := []struct {
			name    string
			body    string
			message string
		}{
			{"empty body", "", "Missing parameters"},
			{"malformed json", "{not json", "Invalid request body"},
			{"missing newRole", `{"targetUserId":"` + target.String() + `"}`, "Missing parameters"},
			{"missing targetUserId", `{"newRole":"admin"}`, "Missing parameters"},
			{"target not a uuid", `{"targetUserId":"abc","newRole":"admin"}`, "Validation failed"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				authz := new(MockAuthorizer)
				roles := new(MockRoleChanger)
				handler := NewAdminHandler(authz, roles, new(MockAuditLister), logger)

				w := httptest.NewRecorder()
				handler.HandleChangeRole(w, changeRoleRequest(tt.body, "tok"))

				assert.Equal(t, http.StatusBadRequest, w.Code)
				assert.Equal(t, tt.message, decodeErrorBody(t, w).Message)
				authz.AssertNotCalled(t, "Authorize", mock.Anything, mock.Anything)
				roles.AssertNotCalled(t, "ChangeRole", mock.Anything, mock.Anything)
			})
		}
	})

	t.Run("unconfigured backend returns 500", func(t *testing.T) {
		authz := new(MockAuthorizer)
		roles := new(MockRoleChanger)
		handler := NewAdminHandler(authz, roles, new(MockAuditLister), logger)

		authz.On("Configured").Return(true)
		roles.On("Configured").Return(false)

		w := httptest.NewRecorder()
		handler.HandleChangeRole(w, changeRoleRequest(validBody, "tok"))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "backend not configured", decodeErrorBody(t, w).Message)
		authz.AssertNotCalled(t, "Authorize", mock.Anything, mock.Anything)
	})

	t.Run("missing token returns 401", func(t *testing.T) {
		authz := new(MockAuthorizer)
		roles := new(MockRoleChanger)
		handler := NewAdminHandler(authz, roles, new(MockAuditLister), logger)

		authz.On("Configured").Return(true)
		roles.On("Configured").Return(true)
		authz.On("Authorize", mock.Anything, "").Return(nil, services.ErrMissingToken)

		w := httptest.NewRecorder()
		handler.HandleChangeRole(w, changeRoleRequest(validBody, ""))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		roles.AssertNotCalled(t, "ChangeRole", mock.Anything, mock.Anything)
	})

	t.Run("member caller returns 403", func(t *testing.T) {
		authz := new(MockAuthorizer)
		roles := new(MockRoleChanger)
		handler := NewAdminHandler(authz, roles, new(MockAuditLister), logger)

		member := &models.Principal{ID: uuid.New(), Role: models.RoleMember}
		authz.On("Configured").Return(true)
		roles.On("Configured").Return(true)
		authz.On("Authorize", mock.Anything, "tok").Return(member, services.ErrForbidden)

		w := httptest.NewRecorder()
		handler.HandleChangeRole(w, changeRoleRequest(validBody, "tok"))

		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Equal(t, "Forbidden: admin role required", decodeErrorBody(t, w).Message)
		roles.AssertNotCalled(t, "ChangeRole", mock.Anything, mock.Anything)
	})

	t.Run("update failure returns opaque 500", func(t *testing.T) {
		authz := new(MockAuthorizer)
		roles := new(MockRoleChanger)
		handler := NewAdminHandler(authz, roles, new(MockAuditLister), logger)

		authz.On("Configured").Return(true)
		roles.On("Configured").Return(true)
		authz.On("Authorize", mock.Anything, "tok").Return(admin, nil)
		roles.On("ChangeRole", mock.Anything, mock.Anything).
			Return(nil, services.WrapInternal("failed to update role", errors.New("pq: deadlock detected")))

		w := httptest.NewRecorder()
		handler.HandleChangeRole(w, changeRoleRequest(validBody, "tok"))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.NotContains(t, w.Body.String(), "deadlock")
	})
}

func TestHandleListAudit(t *testing.T) {
	logger := zap.NewNop()

	t.Run("returns page with cursor", func(t *testing.T) {
		audits := new(MockAuditLister)
		handler := NewAdminHandler(new(MockAuthorizer), new(MockRoleChanger), audits, logger)

		created := time.Date(2026, 3, 1, 10, 0, 0, 123000000, time.UTC)
		cursor := models.FormatCursor(created)
		rc := models.NewRoleChange(uuid.New(), uuid.New(), models.RoleMember, models.RoleAdmin)
		rc.CreatedAt = created
		page := &models.AuditPage{
			Data:       []models.AuditEntry{models.NewAuditEntry(rc)},
			NextCursor: &cursor,
			HasMore:    true,
		}

		audits.On("Configured").Return(true)
		audits.On("ListPage", mock.Anything, audit.PageRequest{Limit: 1}).Return(page, nil)

		req := httptest.NewRequest(http.MethodGet, "/api/admin/audit?limit=1", nil)
		w := httptest.NewRecorder()
		handler.HandleListAudit(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, true, body["has_more"])
		assert.Equal(t, cursor, body["next_cursor"])
		assert.Len(t, body["data"], 1)
		audits.AssertExpectations(t)
	})

	t.Run("after is passed as a time", func(t *testing.T) {
		audits := new(MockAuditLister)
		handler := NewAdminHandler(new(MockAuthorizer), new(MockRoleChanger), audits, logger)

		after := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
		audits.On("Configured").Return(true)
		audits.On("ListPage", mock.Anything, mock.MatchedBy(func(req audit.PageRequest) bool {
			return req.Limit == audit.DefaultLimit && req.After != nil && req.After.Equal(after)
		})).Return(&models.AuditPage{Data: []models.AuditEntry{}}, nil)

		req := httptest.NewRequest(http.MethodGet, "/api/admin/audit?after="+models.FormatCursor(after), nil)
		w := httptest.NewRecorder()
		handler.HandleListAudit(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"data":[],"next_cursor":null,"has_more":false}`, w.Body.String())
	})

	t.Run("invalid cursor returns 400", func(t *testing.T) {
		audits := new(MockAuditLister)
		handler := NewAdminHandler(new(MockAuthorizer), new(MockRoleChanger), audits, logger)

		req := httptest.NewRequest(http.MethodGet, "/api/admin/audit?after=yesterday", nil)
		w := httptest.NewRecorder()
		handler.HandleListAudit(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		audits.AssertNotCalled(t, "ListPage", mock.Anything, mock.Anything)
	})

	t.Run("query failure returns 500", func(t *testing.T) {
		audits := new(MockAuditLister)
		handler := NewAdminHandler(new(MockAuthorizer), new(MockRoleChanger), audits, logger)

		audits.On("Configured").Return(true)
		audits.On("ListPage", mock.Anything, mock.Anything).
			Return(nil, services.WrapInternal("failed to list audit log", errors.New("timeout")))

		req := httptest.NewRequest(http.MethodGet, "/api/admin/audit", nil)
		w := httptest.NewRecorder()
		handler.HandleListAudit(w, req)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})

	t.Run("unconfigured pager returns 500", func(t *testing.T) {
		audits := new(MockAuditLister)
		handler := NewAdminHandler(new(MockAuthorizer), new(MockRoleChanger), audits, logger)

		audits.On("Configured").Return(false)

		req := httptest.NewRequest(http.MethodGet, "/api/admin/audit", nil)
		w := httptest.NewRecorder()
		handler.HandleListAudit(w, req)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}
