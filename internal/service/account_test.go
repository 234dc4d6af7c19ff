package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sakif/account-service/internal/apperror"
	"github.com/sakif/account-service/internal/auth"
	"github.com/sakif/account-service/internal/model"
)

// =========================================================================
// FAKE REPOSITORY
// =========================================================================
//
// An in-memory UserRepository with the same case-insensitive semantics as
// the sqlite implementation. A hand-written fake keeps these tests
// dependency-free and makes the simulated behavior visible in one place.

type fakeUserRepo struct {
	users  map[string]*model.User // keyed by ID
	nextID int
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*model.User)}
}

func (f *fakeUserRepo) Create(_ context.Context, user *model.User) error {
	// Enforce the same uniqueness the sqlite indexes do
	for _, existing := range f.users {
		if strings.EqualFold(existing.Username, user.Username) {
			return apperror.Conflict("username", user.Username)
		}
		if strings.EqualFold(existing.Email, user.Email) {
			return apperror.Conflict("email", user.Email)
		}
	}
	f.nextID++
	user.ID = fmt.Sprintf("fake-%d", f.nextID)
	user.CreatedAt = time.Now()
	user.UpdatedAt = time.Now()
	stored := *user
	f.users[user.ID] = &stored
	return nil
}

func (f *fakeUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	if u, ok := f.users[id]; ok {
		copied := *u
		return &copied, nil
	}
	return nil, apperror.NotFound("user", id)
}

func (f *fakeUserRepo) GetByUsername(_ context.Context, username string) (*model.User, error) {
	for _, u := range f.users {
		if strings.EqualFold(u.Username, username) {
			copied := *u
			return &copied, nil
		}
	}
	return nil, apperror.NotFound("user", username)
}

func (f *fakeUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	for _, u := range f.users {
		if strings.EqualFold(u.Email, email) {
			copied := *u
			return &copied, nil
		}
	}
	return nil, apperror.NotFound("user", email)
}

func (f *fakeUserRepo) UpdateProfile(_ context.Context, id string, input model.ProfileInput) (*model.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	for otherID, other := range f.users {
		if otherID == id {
			continue
		}
		if strings.EqualFold(other.Username, input.Username) {
			return nil, apperror.Conflict("username", input.Username)
		}
		if strings.EqualFold(other.Email, input.Email) {
			return nil, apperror.Conflict("email", input.Email)
		}
	}
	u.Username = input.Username
	u.FirstName = input.FirstName
	u.LastName = input.LastName
	u.Email = input.Email
	u.UpdatedAt = time.Now()
	copied := *u
	return &copied, nil
}

func (f *fakeUserRepo) UpdatePassword(_ context.Context, id string, passwordHash string) error {
	u, ok := f.users[id]
	if !ok {
		return apperror.NotFound("user", id)
	}
	u.PasswordHash = passwordHash
	u.UpdatedAt = time.Now()
	return nil
}

func (f *fakeUserRepo) Delete(_ context.Context, id string) error {
	if _, ok := f.users[id]; !ok {
		return apperror.NotFound("user", id)
	}
	delete(f.users, id)
	return nil
}

// =========================================================================
// HELPERS
// =========================================================================

func newTestService(t *testing.T) (*AccountService, *fakeUserRepo) {
	t.Helper()
	repo := newFakeUserRepo()
	tokens, err := auth.NewTokenService("test-secret-at-least-16-chars!!", 0)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewAccountService(repo, tokens, auth.NewPasswordServiceForTest(), logger)
	return svc, repo
}

func aliceInput() model.SignupInput {
	return model.SignupInput{
		Username:  "alice",
		FirstName: "Alice",
		LastName:  "A",
		Email:     "alice@example.com",
		Password:  "Str0ng!Pass",
	}
}

func signupAlice(t *testing.T, svc *AccountService) *AuthResult {
	t.Helper()
	result, err := svc.Signup(context.Background(), aliceInput())
	if err != nil {
		t.Fatalf("Signup() error = %v", err)
	}
	return result
}

func identityFor(result *AuthResult) *auth.Identity {
	return &auth.Identity{
		ID:        result.User.ID,
		Username:  result.User.Username,
		FirstName: result.User.FirstName,
		LastName:  result.User.LastName,
		Email:     result.User.Email,
	}
}

// =========================================================================
// SIGNUP TESTS
// =========================================================================

func TestSignup_ThenLogin(t *testing.T) {
	svc, _ := newTestService(t)

	result := signupAlice(t, svc)
	if result.Token == "" {
		t.Error("Signup() returned empty token")
	}
	if result.User.ID == "" {
		t.Error("Signup() returned user without ID")
	}
	if result.User.PasswordHash == "" {
		t.Error("Signup() did not hash and store the password")
	}
	if result.User.PasswordHash == "Str0ng!Pass" {
		t.Error("Signup() stored the plaintext password")
	}

	// The credentials must immediately work for login
	login, err := svc.Login(context.Background(), "alice", "Str0ng!Pass")
	if err != nil {
		t.Fatalf("Login() after signup error = %v", err)
	}
	if login.User.ID != result.User.ID {
		t.Errorf("Login() user ID = %q, want %q", login.User.ID, result.User.ID)
	}
}

func TestSignup_DuplicateUsername(t *testing.T) {
	svc, repo := newTestService(t)
	signupAlice(t, svc)

	dup := aliceInput()
	dup.Username = "ALICE" // case-insensitive collision
	dup.Email = "different@example.com"

	_, err := svc.Signup(context.Background(), dup)
	if !errors.Is(err, apperror.ErrConflict) {
		t.Fatalf("Signup() error = %v, want ErrConflict", err)
	}

	// The failed signup must not have claimed the new email
	if _, err := repo.GetByEmail(context.Background(), "different@example.com"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("failed signup's email exists; want ErrNotFound, got %v", err)
	}
}

func TestSignup_DuplicateEmail(t *testing.T) {
	svc, _ := newTestService(t)
	signupAlice(t, svc)

	dup := aliceInput()
	dup.Username = "not-alice"
	dup.Email = "Alice@Example.COM"

	_, err := svc.Signup(context.Background(), dup)
	if !errors.Is(err, apperror.ErrConflict) {
		t.Fatalf("Signup() error = %v, want ErrConflict", err)
	}

	var appErr *apperror.AppError
	if errors.As(err, &appErr) && appErr.Field != "email" {
		t.Errorf("conflict Field = %q, want %q", appErr.Field, "email")
	}
}

func TestSignup_Validation(t *testing.T) {
	svc, _ := newTestService(t)

	tests := []struct {
		name   string
		mutate func(*model.SignupInput)
	}{
		{"empty username", func(in *model.SignupInput) { in.Username = "  " }},
		{"empty first name", func(in *model.SignupInput) { in.FirstName = "" }},
		{"empty last name", func(in *model.SignupInput) { in.LastName = "" }},
		{"malformed email", func(in *model.SignupInput) { in.Email = "not-an-email" }},
		{"email without dot", func(in *model.SignupInput) { in.Email = "a@b" }},
		{"short password", func(in *model.SignupInput) { in.Password = "short" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := aliceInput()
			tt.mutate(&input)
			_, err := svc.Signup(context.Background(), input)
			if !errors.Is(err, apperror.ErrValidation) {
				t.Errorf("Signup() error = %v, want ErrValidation", err)
			}
		})
	}
}

// racingUserRepo simulates the losing side of a signup race: by the time
// the pre-checks ran, the name was free, but another request inserted it
// before our Create. Lookups report NotFound; Create enforces uniqueness
// under a lock, exactly like the database indexes do.
type racingUserRepo struct {
	fakeUserRepo
	mu sync.Mutex
}

func (r *racingUserRepo) GetByUsername(_ context.Context, username string) (*model.User, error) {
	return nil, apperror.NotFound("user", username)
}

func (r *racingUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	return nil, apperror.NotFound("user", email)
}

func (r *racingUserRepo) Create(ctx context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fakeUserRepo.Create(ctx, user)
}

func newRacingService(t *testing.T) (*AccountService, *racingUserRepo) {
	t.Helper()
	repo := &racingUserRepo{fakeUserRepo: *newFakeUserRepo()}
	tokens, err := auth.NewTokenService("test-secret-at-least-16-chars!!", 0)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewAccountService(repo, tokens, auth.NewPasswordServiceForTest(), logger), repo
}

func TestSignup_RaceLoserGetsConflict(t *testing.T) {
	svc, repo := newRacingService(t)

	// First signup lands normally.
	if _, err := svc.Signup(context.Background(), aliceInput()); err != nil {
		t.Fatalf("Signup() error = %v", err)
	}

	// Second signup for the same username: the pre-checks see NotFound
	// (the race window), so the constraint inside Create is the only thing
	// standing — and its Conflict must reach the caller untranslated.
	_, err := svc.Signup(context.Background(), aliceInput())
	if !errors.Is(err, apperror.ErrConflict) {
		t.Fatalf("Signup() race-loser error = %v, want ErrConflict", err)
	}

	if len(repo.users) != 1 {
		t.Errorf("store holds %d users after racing signups, want 1", len(repo.users))
	}
}

func TestSignup_ConcurrentSameUsername(t *testing.T) {
	svc, repo := newRacingService(t)

	bobInput := func() model.SignupInput {
		return model.SignupInput{
			Username:  "bob",
			FirstName: "Bob",
			LastName:  "B",
			Email:     "bob@example.com",
			Password:  "Str0ng!Pass",
		}
	}

	// Two near-simultaneous signups for "bob": exactly one may win, the
	// other must see Conflict.
	results := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Signup(context.Background(), bobInput())
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var succeeded, conflicted int
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, apperror.ErrConflict):
			conflicted++
		default:
			t.Errorf("unexpected signup error: %v", err)
		}
	}

	if succeeded != 1 || conflicted != 1 {
		t.Errorf("concurrent signups: %d succeeded, %d conflicted; want exactly 1 and 1", succeeded, conflicted)
	}
	if len(repo.users) != 1 {
		t.Errorf("store holds %d users, want 1", len(repo.users))
	}
}

// =========================================================================
// LOGIN TESTS
// =========================================================================

func TestLogin_UnknownUser(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Login(context.Background(), "nobody", "whatever!")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("Login() error = %v, want ErrNotFound", err)
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	svc, _ := newTestService(t)
	signupAlice(t, svc)

	_, err := svc.Login(context.Background(), "alice", "wrong")
	if !errors.Is(err, apperror.ErrInvalidCredentials) {
		t.Fatalf("Login() error = %v, want ErrInvalidCredentials", err)
	}
	// A wrong password must never read as "no such user"
	if errors.Is(err, apperror.ErrNotFound) {
		t.Error("Login() with wrong password must not return ErrNotFound")
	}
}

func TestLogin_CaseInsensitiveUsername(t *testing.T) {
	svc, _ := newTestService(t)
	signupAlice(t, svc)

	if _, err := svc.Login(context.Background(), "ALICE", "Str0ng!Pass"); err != nil {
		t.Errorf("Login() with different username casing error = %v", err)
	}
}

// =========================================================================
// ME / PROFILE TESTS
// =========================================================================

func TestMe(t *testing.T) {
	svc, _ := newTestService(t)
	result := signupAlice(t, svc)

	user, err := svc.Me(context.Background(), identityFor(result))
	if err != nil {
		t.Fatalf("Me() error = %v", err)
	}
	if user.Username != "alice" {
		t.Errorf("Username = %q, want %q", user.Username, "alice")
	}
}

func TestMe_Anonymous(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Me(context.Background(), nil)
	if !errors.Is(err, apperror.ErrUnauthenticated) {
		t.Errorf("Me() error = %v, want ErrUnauthenticated", err)
	}
}

func TestUpdateProfile(t *testing.T) {
	svc, _ := newTestService(t)
	result := signupAlice(t, svc)

	updated, err := svc.UpdateProfile(context.Background(), identityFor(result), model.ProfileInput{
		Username:  "alicia",
		FirstName: "Alicia",
		LastName:  "A",
		Email:     "alicia@example.com",
	})
	if err != nil {
		t.Fatalf("UpdateProfile() error = %v", err)
	}
	if updated.Username != "alicia" {
		t.Errorf("Username = %q, want %q", updated.Username, "alicia")
	}
}

func TestUpdateProfile_KeepingOwnUsername(t *testing.T) {
	svc, _ := newTestService(t)
	result := signupAlice(t, svc)

	// Changing only the email while keeping the username must not trip the
	// username uniqueness check against yourself
	_, err := svc.UpdateProfile(context.Background(), identityFor(result), model.ProfileInput{
		Username:  "alice",
		FirstName: "Alice",
		LastName:  "A",
		Email:     "new-alice@example.com",
	})
	if err != nil {
		t.Fatalf("UpdateProfile() keeping own username error = %v", err)
	}
}

func TestUpdateProfile_UsernameTaken(t *testing.T) {
	svc, _ := newTestService(t)
	result := signupAlice(t, svc)

	bob := aliceInput()
	bob.Username = "bob"
	bob.Email = "bob@example.com"
	if _, err := svc.Signup(context.Background(), bob); err != nil {
		t.Fatalf("Signup(bob) error = %v", err)
	}

	_, err := svc.UpdateProfile(context.Background(), identityFor(result), model.ProfileInput{
		Username:  "Bob", // bob's, case-insensitively
		FirstName: "Alice",
		LastName:  "A",
		Email:     "alice@example.com",
	})
	if !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("UpdateProfile() error = %v, want ErrConflict", err)
	}
}

// =========================================================================
// PASSWORD TESTS
// =========================================================================

func TestConfirmPassword(t *testing.T) {
	svc, _ := newTestService(t)
	result := signupAlice(t, svc)
	identity := identityFor(result)

	ok, err := svc.ConfirmPassword(context.Background(), identity, "Str0ng!Pass")
	if err != nil {
		t.Fatalf("ConfirmPassword() error = %v", err)
	}
	if !ok {
		t.Error("ConfirmPassword() = false for the correct password")
	}

	_, err = svc.ConfirmPassword(context.Background(), identity, "wrong")
	if !errors.Is(err, apperror.ErrInvalidCredentials) {
		t.Errorf("ConfirmPassword() error = %v, want ErrInvalidCredentials", err)
	}
}

func TestUpdatePassword_ThenLogin(t *testing.T) {
	svc, _ := newTestService(t)
	result := signupAlice(t, svc)

	if err := svc.UpdatePassword(context.Background(), identityFor(result), "N3w!Password"); err != nil {
		t.Fatalf("UpdatePassword() error = %v", err)
	}

	// New password works
	if _, err := svc.Login(context.Background(), "alice", "N3w!Password"); err != nil {
		t.Errorf("Login() with new password error = %v", err)
	}

	// Old password is dead
	_, err := svc.Login(context.Background(), "alice", "Str0ng!Pass")
	if !errors.Is(err, apperror.ErrInvalidCredentials) {
		t.Errorf("Login() with old password error = %v, want ErrInvalidCredentials", err)
	}
}

func TestUpdatePassword_TooShort(t *testing.T) {
	svc, _ := newTestService(t)
	result := signupAlice(t, svc)

	err := svc.UpdatePassword(context.Background(), identityFor(result), "short")
	if !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("UpdatePassword() error = %v, want ErrValidation", err)
	}
}

// =========================================================================
// DELETE TESTS
// =========================================================================

func TestDeleteAccount_OwnAccount(t *testing.T) {
	svc, repo := newTestService(t)
	result := signupAlice(t, svc)

	if err := svc.DeleteAccount(context.Background(), identityFor(result), result.User.ID); err != nil {
		t.Fatalf("DeleteAccount() error = %v", err)
	}

	if _, err := repo.GetByID(context.Background(), result.User.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("user still present after delete; error = %v, want ErrNotFound", err)
	}
}

func TestDeleteAccount_OtherAccount_Forbidden(t *testing.T) {
	svc, repo := newTestService(t)
	alice := signupAlice(t, svc)

	bob := aliceInput()
	bob.Username = "bob"
	bob.Email = "bob@example.com"
	bobResult, err := svc.Signup(context.Background(), bob)
	if err != nil {
		t.Fatalf("Signup(bob) error = %v", err)
	}

	// Alice tries to delete Bob
	err = svc.DeleteAccount(context.Background(), identityFor(alice), bobResult.User.ID)
	if !errors.Is(err, apperror.ErrForbidden) {
		t.Fatalf("DeleteAccount() on another user error = %v, want ErrForbidden", err)
	}

	// Bob survives
	if _, err := repo.GetByID(context.Background(), bobResult.User.ID); err != nil {
		t.Errorf("bob was deleted by alice; GetByID error = %v", err)
	}
}

func TestDeleteAccount_Anonymous(t *testing.T) {
	svc, _ := newTestService(t)

	err := svc.DeleteAccount(context.Background(), nil, "any-id")
	if !errors.Is(err, apperror.ErrUnauthenticated) {
		t.Errorf("DeleteAccount() error = %v, want ErrUnauthenticated", err)
	}
}
