package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/neomorfeo/wedlock/internal/adapter/locale"
	"github.com/neomorfeo/wedlock/internal/adapter/ratelimit"
	"github.com/neomorfeo/wedlock/internal/app"
	"github.com/neomorfeo/wedlock/internal/domain"
)

// Services bundles what the API needs. Limiter and Webhooks may be nil:
// without a limiter signups are not rate limited, and without a verifier
// the webhook endpoint answers 503.
type Services struct {
	Checkout *app.CheckoutService
	Trial    *app.TrialService
	Slugs    *app.SlugService
	Finalize *app.FinalizeService
	Account  *app.AccountService
	Webhooks EventVerifier
	Limiter  ratelimit.Limiter
	Logger   *slog.Logger
}

// --- Signup ---

// SignupBody is the wizard payload shared by both signup flows. Fields are
// optional at the schema level so that missing values come back as
// field-scoped errors.
type SignupBody struct {
	Email        string `json:"email" required:"false" doc:"Owner email address"`
	Password     string `json:"password" required:"false" doc:"Owner password"`
	Partner1Name string `json:"partner1_name" required:"false" doc:"First partner's name"`
	Partner2Name string `json:"partner2_name" required:"false" doc:"Second partner's name"`
	WeddingDate  string `json:"wedding_date,omitempty" required:"false" doc:"Wedding date (YYYY-MM-DD)"`
	Slug         string `json:"slug" required:"false" doc:"Requested site address"`
	ThemeID      string `json:"theme_id,omitempty" required:"false" doc:"Starting theme"`
}

func (b SignupBody) toInput() (domain.SignupInput, error) {
	in := domain.SignupInput{
		Email:        b.Email,
		Password:     b.Password,
		Partner1Name: b.Partner1Name,
		Partner2Name: b.Partner2Name,
		Slug:         b.Slug,
		ThemeID:      b.ThemeID,
	}
	if b.WeddingDate != "" {
		d, err := time.Parse(time.DateOnly, b.WeddingDate)
		if err != nil {
			return domain.SignupInput{}, &domain.FieldError{Field: "wedding_date", Message: "Wedding date must be formatted as YYYY-MM-DD"}
		}
		in.WeddingDate = &d
	}
	return in, nil
}

type SignupInput struct {
	AcceptLanguage string `header:"Accept-Language" required:"false" doc:"Preferred notification language"`
	Body           SignupBody
}

type CheckoutOutput struct {
	Body struct {
		SessionID string `json:"sessionId" doc:"Checkout session identifier"`
		URL       string `json:"url" doc:"Hosted checkout page to redirect to"`
	}
}

type TrialOutput struct {
	Body struct {
		Success bool   `json:"success"`
		Slug    string `json:"slug" doc:"Site address of the new wedding"`
		Email   string `json:"email" doc:"Owner email address"`
	}
}

// --- Slugs ---

type AvailabilityInput struct {
	Slug string `path:"slug" maxLength:"100" doc:"Site address to check"`
}

type SuggestInput struct {
	Partner1 string `query:"partner1" required:"true" maxLength:"100" doc:"First partner's name"`
	Partner2 string `query:"partner2" required:"true" maxLength:"100" doc:"Second partner's name"`
}

type AvailabilityResponse struct {
	Slug        string   `json:"slug"`
	Available   bool     `json:"available"`
	Reason      string   `json:"reason,omitempty" enum:"invalid,blocked,taken,reserved" doc:"Why the slug cannot be used"`
	Suggestions []string `json:"suggestions" doc:"Free alternatives"`
}

type AvailabilityOutput struct {
	Body AvailabilityResponse
}

func toAvailabilityResponse(a app.Availability) AvailabilityResponse {
	suggestions := a.Suggestions
	if suggestions == nil {
		suggestions = []string{}
	}
	return AvailabilityResponse{
		Slug:        a.Slug,
		Available:   a.Available,
		Reason:      a.Reason,
		Suggestions: suggestions,
	}
}

// --- Account ---

type SetPasswordInput struct {
	Body struct {
		Token    string `json:"token" required:"false" doc:"Token from the set-password link"`
		Password string `json:"password" required:"false" doc:"New owner password"`
	}
}

type SetPasswordOutput struct {
	Body struct {
		Success bool `json:"success"`
	}
}

// Register adds all signup API routes to the Huma API.
func Register(api huma.API, svc Services) {
	logger := svc.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var limited huma.Middlewares
	if svc.Limiter != nil {
		limited = huma.Middlewares{ratelimit.Middleware(svc.Limiter, logger)}
	}

	huma.Register(api, huma.Operation{
		OperationID: "start-checkout",
		Method:      http.MethodPost,
		Path:        "/api/v1/checkout",
		Summary:     "Reserve a slug and start a paid signup",
		Tags:        []string{"Signup"},
		Middlewares: limited,
		Errors:      []int{http.StatusBadRequest, http.StatusConflict, http.StatusTooManyRequests, http.StatusServiceUnavailable},
	}, func(ctx context.Context, input *SignupInput) (*CheckoutOutput, error) {
		in, err := input.Body.toInput()
		if err != nil {
			return nil, toAPIError(err)
		}

		session, err := svc.Checkout.Start(ctx, in, locale.FromAcceptLanguage(input.AcceptLanguage))
		if err != nil {
			return nil, failure(ctx, logger, "checkout failed", err)
		}

		out := &CheckoutOutput{}
		out.Body.SessionID = session.ID
		out.Body.URL = session.URL
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "signup-trial",
		Method:      http.MethodPost,
		Path:        "/api/v1/signup/trial",
		Summary:     "Create a trial wedding site",
		Tags:        []string{"Signup"},
		Middlewares: limited,
		Errors:      []int{http.StatusBadRequest, http.StatusConflict, http.StatusTooManyRequests, http.StatusServiceUnavailable},
	}, func(ctx context.Context, input *SignupInput) (*TrialOutput, error) {
		in, err := input.Body.toInput()
		if err != nil {
			return nil, toAPIError(err)
		}

		result, err := svc.Trial.SignUp(ctx, in, locale.FromAcceptLanguage(input.AcceptLanguage))
		if err != nil {
			return nil, failure(ctx, logger, "trial signup failed", err)
		}

		out := &TrialOutput{}
		out.Body.Success = true
		out.Body.Slug = result.Slug
		out.Body.Email = result.Email
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "check-slug",
		Method:      http.MethodGet,
		Path:        "/api/v1/slugs/{slug}/availability",
		Summary:     "Check whether a site address is free",
		Tags:        []string{"Slugs"},
	}, func(ctx context.Context, input *AvailabilityInput) (*AvailabilityOutput, error) {
		a, err := svc.Slugs.Check(ctx, input.Slug)
		if err != nil {
			return nil, failure(ctx, logger, "slug check failed", err)
		}
		return &AvailabilityOutput{Body: toAvailabilityResponse(a)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "suggest-slug",
		Method:      http.MethodGet,
		Path:        "/api/v1/slugs/suggestions",
		Summary:     "Suggest a site address from the partners' names",
		Tags:        []string{"Slugs"},
	}, func(ctx context.Context, input *SuggestInput) (*AvailabilityOutput, error) {
		a, err := svc.Slugs.Suggest(ctx, input.Partner1, input.Partner2)
		if err != nil {
			return nil, failure(ctx, logger, "slug suggestion failed", err)
		}
		return &AvailabilityOutput{Body: toAvailabilityResponse(a)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-password",
		Method:      http.MethodPost,
		Path:        "/api/v1/account/password",
		Summary:     "Set the owner password from an emailed link",
		Tags:        []string{"Account"},
		Middlewares: limited,
		Errors:      []int{http.StatusBadRequest, http.StatusTooManyRequests, http.StatusServiceUnavailable},
	}, func(ctx context.Context, input *SetPasswordInput) (*SetPasswordOutput, error) {
		if svc.Account == nil {
			return nil, toAPIError(domain.ErrNotConfigured)
		}
		if err := svc.Account.SetPassword(ctx, input.Body.Token, input.Body.Password); err != nil {
			return nil, failure(ctx, logger, "setting password failed", err)
		}
		out := &SetPasswordOutput{}
		out.Body.Success = true
		return out, nil
	})

	registerWebhook(api, svc, logger)
}

// failure logs server-side detail for 5xx errors and returns the API error.
func failure(ctx context.Context, logger *slog.Logger, msg string, err error) *APIError {
	apiErr := toAPIError(err)
	if apiErr.Status >= http.StatusInternalServerError {
		logger.ErrorContext(ctx, msg, "error", err, "status", apiErr.Status)
	}
	return apiErr
}
