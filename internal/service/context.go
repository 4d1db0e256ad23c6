package service

import (
	"context"

	"github.com/google/uuid"
)

type ctxKey string

const (
	ctxUserIDKey ctxKey = "userID"
	ctxRoleKey   ctxKey = "role"
)

type Role string

const (
	RoleCustomer Role = "ROLE_CUSTOMER"
	RoleAdmin    Role = "ROLE_ADMIN"
)

// Identity: проверенный транспортом пользователь. Передаётся в каждый
// вызов сервиса явно; нулевой UserID означает анонимный запрос.
type Identity struct {
	UserID uuid.UUID
	Role   Role
}

func (i Identity) IsAdmin() bool { return i.Role == RoleAdmin }

func (i Identity) require() error {
	if i.UserID == uuid.Nil {
		return ErrUnauthenticated
	}
	return nil
}

func (i Identity) requireAdmin() error {
	if err := i.require(); err != nil {
		return err
	}
	if !i.IsAdmin() {
		return ErrForbidden
	}
	return nil
}

func WithUserID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, ctxUserIDKey, id)
}

func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	v, ok := ctx.Value(ctxUserIDKey).(uuid.UUID)
	return v, ok
}

func WithRole(ctx context.Context, r Role) context.Context {
	return context.WithValue(ctx, ctxRoleKey, r)
}
func RoleFromContext(ctx context.Context) (Role, bool) {
	v, ok := ctx.Value(ctxRoleKey).(Role)
	return v, ok
}

func WithIdentity(ctx context.Context, who Identity) context.Context {
	return WithRole(WithUserID(ctx, who.UserID), who.Role)
}

// IdentityFromContext собирает Identity из значений, положенных
// auth-интерсептором или middleware. Без них вернётся нулевой Identity.
func IdentityFromContext(ctx context.Context) Identity {
	uid, _ := UserIDFromContext(ctx)
	role, _ := RoleFromContext(ctx)
	return Identity{UserID: uid, Role: role}
}
