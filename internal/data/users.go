package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hafizmfadli/go-review/internal/validator"
)

// Role decides what a user may do.
type Role string

const (
	RoleUser      Role = "user"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

// Roles lists every valid role.
var Roles = []Role{RoleUser, RoleModerator, RoleAdmin}

// ReservedUsername is taken by the /users/me route.
const ReservedUsername = "me"

// AnonymousUser represents a request without an access token.
var AnonymousUser = &User{}

type User struct {
	ID        int64     `json:"id"`
	CreatedAt time.Time `json:"-"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Bio       string    `json:"bio"`
	Role      Role      `json:"role"`
	// ConfirmationCode holds the bcrypt hash of the last code mailed to the
	// user, or "" once it has been redeemed.
	ConfirmationCode string `json:"-"`
	Confirmed        bool   `json:"-"`
	Version          int32  `json:"-"`
}

func (u *User) IsAnonymous() bool {
	return u == AnonymousUser
}

func ValidateUsername(v *validator.Validator, username string) {
	v.Check(username != "", "username", "must be provided")
	v.Check(validator.MaxChars(username, 150), "username", "must not be more than 150 characters long")
	v.Check(validator.Matches(username, validator.UsernameRX), "username", "may contain only letters, digits and @/./+/-/_")
	v.Check(username != ReservedUsername, "username", `"me" cannot be used as a username`)
}

func ValidateEmail(v *validator.Validator, email string) {
	v.Check(email != "", "email", "must be provided")
	v.Check(validator.MaxChars(email, 254), "email", "must not be more than 254 characters long")
	v.Check(validator.Matches(email, validator.EmailRX), "email", "must be a valid email address")
}

func ValidateUser(v *validator.Validator, user *User) {
	ValidateUsername(v, user.Username)
	ValidateEmail(v, user.Email)

	v.Check(validator.MaxChars(user.FirstName, 150), "first_name", "must not be more than 150 characters long")
	v.Check(validator.MaxChars(user.LastName, 150), "last_name", "must not be more than 150 characters long")
	v.Check(validator.In(user.Role, Roles...), "role", "must be one of user, moderator, admin")
}

type UserModel struct {
	DB *sql.DB
}

// userColumns is shared by every query scanning a full row with scanUser.
const userColumns = `id, created_at, username, email, first_name, last_name, bio, role, confirmation_code, confirmed, version`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner, user *User) error {
	return row.Scan(
		&user.ID,
		&user.CreatedAt,
		&user.Username,
		&user.Email,
		&user.FirstName,
		&user.LastName,
		&user.Bio,
		&user.Role,
		&user.ConfirmationCode,
		&user.Confirmed,
		&user.Version,
	)
}

func userUniqueError(err error) error {
	switch constraintViolation(err, pgUniqueViolation) {
	case "users_username_key":
		return ErrDuplicateUsername
	case "users_email_key":
		return ErrDuplicateEmail
	default:
		return err
	}
}

func (m UserModel) Insert(user *User) error {
	query := `
		INSERT INTO users (username, email, first_name, last_name, bio, role, confirmation_code, confirmed)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, version`

	if user.Role == "" {
		user.Role = RoleUser
	}
	args := []any{user.Username, user.Email, user.FirstName, user.LastName, user.Bio, user.Role, user.ConfirmationCode, user.Confirmed}

	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	err := m.DB.QueryRowContext(ctx, query, args...).Scan(&user.ID, &user.CreatedAt, &user.Version)
	if err != nil {
		return userUniqueError(err)
	}
	return nil
}

func (m UserModel) Get(id int64) (*User, error) {
	if id < 1 {
		return nil, ErrRecordNotFound
	}
	return m.getBy("id", id)
}

func (m UserModel) GetByUsername(username string) (*User, error) {
	return m.getBy("username", username)
}

func (m UserModel) getBy(column string, value any) (*User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE %s = $1`, userColumns, column)

	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	var user User
	err := scanUser(m.DB.QueryRowContext(ctx, query, value), &user)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, ErrRecordNotFound
		default:
			return nil, err
		}
	}
	return &user, nil
}

// GetAll returns a page of users whose username contains the given string.
func (m UserModel) GetAll(username string, filters Filters) ([]*User, Metadata, error) {
	query := fmt.Sprintf(`
		SELECT count(*) OVER(), %s
		FROM users u
		WHERE %s
		ORDER BY %s
		LIMIT $2 OFFSET $3`, userColumns, containsCondition("u.username::text"), filters.orderBy("u"))

	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	rows, err := m.DB.QueryContext(ctx, query, username, filters.limit(), filters.offset())
	if err != nil {
		return nil, Metadata{}, err
	}
	defer rows.Close()

	totalRecords := 0
	users := []*User{}

	for rows.Next() {
		var user User
		err := rows.Scan(
			&totalRecords,
			&user.ID,
			&user.CreatedAt,
			&user.Username,
			&user.Email,
			&user.FirstName,
			&user.LastName,
			&user.Bio,
			&user.Role,
			&user.ConfirmationCode,
			&user.Confirmed,
			&user.Version,
		)
		if err != nil {
			return nil, Metadata{}, err
		}
		users = append(users, &user)
	}
	if err = rows.Err(); err != nil {
		return nil, Metadata{}, err
	}

	return users, CalculateMetadata(totalRecords, filters.Page, filters.PageSize), nil
}

// Update writes every mutable column, guarded by the version read earlier.
func (m UserModel) Update(user *User) error {
	query := `
		UPDATE users
		SET username = $1, email = $2, first_name = $3, last_name = $4, bio = $5, role = $6,
			confirmation_code = $7, confirmed = $8, version = version + 1
		WHERE id = $9 AND version = $10
		RETURNING version`

	args := []any{
		user.Username,
		user.Email,
		user.FirstName,
		user.LastName,
		user.Bio,
		user.Role,
		user.ConfirmationCode,
		user.Confirmed,
		user.ID,
		user.Version,
	}

	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	err := m.DB.QueryRowContext(ctx, query, args...).Scan(&user.Version)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return ErrEditConflict
		default:
			return userUniqueError(err)
		}
	}
	return nil
}

func (m UserModel) Delete(id int64) error {
	if id < 1 {
		return ErrRecordNotFound
	}
	return deleteByID(m.DB, "users", id)
}

// deleteByID removes one row, reporting ErrRecordNotFound if none matched.
func deleteByID(db *sql.DB, table string, id int64) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, table)

	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	result, err := db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}
