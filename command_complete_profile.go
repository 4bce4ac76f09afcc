package navgate

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-featuregate/gate"
	"github.com/google/uuid"
	"github.com/nyaruka/phonenumbers"
	"github.com/uptrace/bun"
)

// defaultPhoneRegion is assumed when organization phone numbers carry no
// country prefix.
const defaultPhoneRegion = "US"

type CompleteProfileMessage struct {
	UserID     string `json:"user_id" doc:"Account finishing onboarding."`
	Role       string `json:"role" doc:"Target role selected during onboarding."`
	OrgName    string `json:"organization_name" doc:"Care organization the account joins."`
	OrgPhone   string `json:"organization_phone" doc:"Organization contact number."`
	OnResponse func(resp *CompleteProfileResponse)
}

func (e CompleteProfileMessage) Type() string { return "user.profile.complete" }

// Validate will run validation rules
func (e CompleteProfileMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(
			&e.UserID,
			validation.Required,
			is.UUID,
		),
		validation.Field(
			&e.Role,
			validation.Required,
			validation.By(validateLandingRole),
		),
		validation.Field(
			&e.OrgName,
			validation.Required,
			validation.Length(2, 200),
		),
		validation.Field(
			&e.OrgPhone,
			validation.By(validatePhoneNumber),
		),
	)
}

// validateLandingRole accepts only roles that can land somewhere after
// completion. Completing a profile into guest or user would loop the account
// straight back into onboarding.
func validateLandingRole(value any) error {
	s, _ := value.(string)
	role, ok := ParseRole(s)
	if !ok {
		return validation.NewError("validation_role", "must be a known role")
	}
	if role.RequiresCompletion() {
		return validation.NewError("validation_role", "role cannot complete onboarding")
	}
	return nil
}

func validatePhoneNumber(value any) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}

	num, err := phonenumbers.Parse(s, defaultPhoneRegion)
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return validation.NewError("validation_phone", "must be a valid phone number")
	}

	return nil
}

// normalizePhone renders a parseable number as E.164, leaving everything else
// untouched.
func normalizePhone(raw string) string {
	if raw == "" {
		return ""
	}

	num, err := phonenumbers.Parse(raw, defaultPhoneRegion)
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return raw
	}

	return phonenumbers.Format(num, phonenumbers.E164)
}

type CompleteProfileResponse struct {
	User         *User
	Organization *Organization
	Session      *SessionUser
	Success      bool
}

type CompleteProfileHandler struct {
	repo     RepositoryManager
	gate     gate.FeatureGate
	activity ActivitySink
	logger   Logger
}

// NewCompleteProfileHandler creates a handler with sane defaults.
func NewCompleteProfileHandler(repo RepositoryManager) *CompleteProfileHandler {
	return &CompleteProfileHandler{
		repo:     repo,
		activity: noopActivitySink{},
		logger:   defLogger{},
	}
}

// WithActivitySink sets the sink used to emit profile completion events.
func (h *CompleteProfileHandler) WithActivitySink(sink ActivitySink) *CompleteProfileHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *CompleteProfileHandler) WithLogger(logger Logger) *CompleteProfileHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

// WithFeatureGate guards execution behind the profile completion feature.
func (h *CompleteProfileHandler) WithFeatureGate(featureGate gate.FeatureGate) *CompleteProfileHandler {
	h.gate = featureGate
	return h
}

func (h *CompleteProfileHandler) Execute(ctx context.Context, event CompleteProfileMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during profile completion",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *CompleteProfileHandler) execute(ctx context.Context, event CompleteProfileMessage) error {
	if h.gate != nil {
		if err := requireFeatureGate(ctx, h.gate, FeatureProfileComplete, ErrProfileCompletionDisabled); err != nil {
			return err
		}
	}

	if err := event.Validate(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid profile completion payload")
	}

	// both parsed successfully during validation
	userID, _ := uuid.Parse(event.UserID)
	role, _ := ParseRole(event.Role)

	resp := &CompleteProfileResponse{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		org, err := h.repo.Organizations().GetOrCreateByNameTx(ctx, tx, &Organization{
			Name:  event.OrgName,
			Phone: normalizePhone(event.OrgPhone),
		})
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to resolve organization")
		}
		resp.Organization = org

		user, err := h.repo.Users().MarkProfileCompleteTx(ctx, tx, userID, role, org.ID)
		if err != nil {
			var richErr *goerrors.Error
			if goerrors.As(err, &richErr) {
				return richErr
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to mark profile complete")
		}
		resp.User = user

		return nil
	})

	if err != nil {
		h.recordFailure(ctx, event, err)

		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "profile completion transaction failed")
	}

	resp.Session = resp.User.SessionUser()
	resp.Success = true

	h.recordActivity(ctx, resp)

	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}

func (h *CompleteProfileHandler) recordActivity(ctx context.Context, resp *CompleteProfileResponse) {
	if resp == nil || resp.User == nil {
		return
	}

	event := ActivityEvent{
		EventType: ActivityEventProfileComplete,
		UserID:    resp.User.ID.String(),
		Metadata: map[string]any{
			"role": string(resp.User.Role),
		},
		OccurredAt: time.Now(),
	}

	if resp.Organization != nil {
		event.Metadata["organization_id"] = resp.Organization.ID.String()
	}

	if err := normalizeActivitySink(h.activity).Record(ctx, event); err != nil {
		h.getLogger().Warn("activity sink error during profile completion", "error", err)
	}
}

func (h *CompleteProfileHandler) recordFailure(ctx context.Context, msg CompleteProfileMessage, cause error) {
	event := ActivityEvent{
		EventType: ActivityEventProfileFailure,
		UserID:    msg.UserID,
		Metadata: map[string]any{
			"role":  msg.Role,
			"error": cause.Error(),
		},
		OccurredAt: time.Now(),
	}

	if err := normalizeActivitySink(h.activity).Record(ctx, event); err != nil {
		h.getLogger().Warn("activity sink error during profile completion", "error", err)
	}
}

func (h *CompleteProfileHandler) getLogger() Logger {
	if h.logger != nil {
		return h.logger
	}
	return defLogger{}
}
