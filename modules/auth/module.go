package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"

	userdomain "github.com/example/realtime-chat/domain/user"
	"github.com/example/realtime-chat/modules/store"
)

// Module validates bearer tokens for the gateway and keeps the display name
// of every authenticated user in the profile table.
type Module struct {
	storeModule *store.Module
	jwtManager  *JWTManager
	config      JWTConfig

	profiles sync.Map // userID -> last stored name

	logger types.Logger
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.ServiceProviderModule = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates the auth module. storeModule may be nil, in which case
// profiles are not recorded.
func NewModule(storeModule *store.Module, config JWTConfig, logger types.Logger) *Module {
	return &Module{
		storeModule: storeModule,
		config:      config,
		logger:      logger,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "auth"
}

// Start initializes the JWT manager.
func (m *Module) Start(_ context.Context) error {
	if m.config.SecretKey == "" {
		return fmt.Errorf("JWT secret key is not configured")
	}
	m.jwtManager = NewJWTManager(m.config)
	log.Printf("[auth] Module started (issuer: %s)", m.config.Issuer)
	return nil
}

// Stop shuts down the module.
func (m *Module) Stop(_ context.Context) error {
	log.Println("[auth] Module stopped")
	return nil
}

// Health returns the health status of the module.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	if m.jwtManager == nil {
		return mono.HealthStatus{Healthy: false, Message: "not started"}
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"issuer": m.config.Issuer,
		},
	}
}

// RegisterServices registers request-reply services in the service container.
func (m *Module) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container,
		ServiceValidateToken,
		json.Unmarshal,
		json.Marshal,
		m.handleValidateToken,
	); err != nil {
		return fmt.Errorf("failed to register validate-token service: %w", err)
	}

	log.Printf("[auth] Registered services: validate-token")
	return nil
}

// handleValidateToken handles token validation.
func (m *Module) handleValidateToken(ctx context.Context, req ValidateTokenRequest, _ *mono.Msg) (ValidateTokenResponse, error) {
	claims, err := m.jwtManager.ValidateAccessToken(req.Token)
	if err != nil {
		errMsg := "invalid token"
		if errors.Is(err, ErrExpiredToken) {
			errMsg = "token expired"
		}
		return ValidateTokenResponse{
			Valid: false,
			Error: errMsg,
		}, nil // Return response, not error, for validation failures
	}

	m.recordProfile(ctx, claims)

	return ValidateTokenResponse{
		Valid:  true,
		UserID: claims.UserID,
		Name:   claims.Name,
	}, nil
}

// recordProfile stores the user's display name the first time it is seen
// and whenever it changes.
func (m *Module) recordProfile(ctx context.Context, claims *JWTClaims) {
	if m.storeModule == nil || claims.Name == "" {
		return
	}
	if prev, ok := m.profiles.Load(claims.UserID); ok && prev.(string) == claims.Name {
		return
	}
	st := m.storeModule.Store()
	if st == nil {
		return
	}
	if err := st.SaveUser(ctx, &userdomain.User{ID: claims.UserID, Name: claims.Name}); err != nil {
		m.logger.Warn("Failed to record user profile", "userID", claims.UserID, "error", err)
		return
	}
	m.profiles.Store(claims.UserID, claims.Name)
}

// JWTManager returns the token manager. It is nil until Start has run.
func (m *Module) JWTManager() *JWTManager {
	return m.jwtManager
}

// LoadJWTConfig loads JWT configuration from environment variables.
func LoadJWTConfig() JWTConfig {
	config := DefaultJWTConfig()

	if secret := os.Getenv("JWT_SECRET_KEY"); secret != "" {
		config.SecretKey = secret
	}

	if issuer := os.Getenv("JWT_ISSUER"); issuer != "" {
		config.Issuer = issuer
	}

	return config
}
