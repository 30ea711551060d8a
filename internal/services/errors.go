package services

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/plumeapp/plume/internal/permissions"
	apperrors "github.com/plumeapp/plume/pkg/errors"
)

var (
	// ErrUserNotFound indicates a referenced user id does not exist.
	ErrUserNotFound = permissions.ErrUserNotFound
	// ErrPostNotFound indicates a referenced post id does not exist.
	ErrPostNotFound = permissions.ErrPostNotFound
	// ErrGroupNotFound indicates a referenced group id does not exist.
	ErrGroupNotFound = apperrors.NewNotFound("GROUP", "Group not found")
	// ErrParentPostNotFound indicates the supplied parent post id does not exist.
	ErrParentPostNotFound = apperrors.NewNotFound("PARENT_POST", "Parent post not found")
	// ErrAuthorNotFound indicates the supplied author id does not exist.
	ErrAuthorNotFound = apperrors.NewNotFound("AUTHOR", "Author of post not found")
	// ErrEmptyMemberList signals a group creation without any members.
	ErrEmptyMemberList = apperrors.NewBadRequest("at least one of user ids or group ids must be provided")
)

// isUniqueConstraintError detects database uniqueness constraint violations across vendors.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr != nil && pgErr.Code == "23505" {
		return true
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr != nil && myErr.Number == 1062 {
		return true
	}

	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "unique") ||
		strings.Contains(lower, "duplicate") ||
		strings.Contains(lower, "constraint")
}
