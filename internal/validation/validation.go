package validation

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/prohub/nexus/backend/internal/logger"
	"go.uber.org/zap"
)

// Service names accepted in NEXUS_REQUIRE_<NAME>
const (
	ServiceDatabase = "database"
	ServiceRedis    = "redis"
	ServiceEmail    = "email"
)

var knownServices = []string{ServiceDatabase, ServiceRedis, ServiceEmail}

// CheckFunc checks one backing service
type CheckFunc func(ctx context.Context) error

// ServiceValidator handles validation of required services at startup
type ServiceValidator struct {
	requiredServices []string
	checks           map[string]CheckFunc
	timeout          time.Duration
}

// NewServiceValidator creates a validator for the services flagged in the environment
func NewServiceValidator() *ServiceValidator {
	return NewServiceValidatorFor(parseRequiredServices())
}

// NewServiceValidatorFor creates a validator for an explicit service list
func NewServiceValidatorFor(required []string) *ServiceValidator {
	return &ServiceValidator{
		requiredServices: required,
		checks:           make(map[string]CheckFunc),
		timeout:          10 * time.Second,
	}
}

// Register sets the check for name. A nil check marks the service as not
// configured, which fails validation when the service is required.
func (sv *ServiceValidator) Register(name string, check CheckFunc) *ServiceValidator {
	sv.checks[name] = check
	return sv
}

// Required returns the services that must pass
func (sv *ServiceValidator) Required() []string {
	return sv.requiredServices
}

// ValidateServices runs the check of every required service
func (sv *ServiceValidator) ValidateServices(ctx context.Context) error {
	if len(sv.requiredServices) == 0 {
		logger.Log.Info("No required services configured for validation")
		return nil
	}

	logger.Log.Info("Validating required services",
		zap.Strings("services", sv.requiredServices),
	)

	for _, serviceName := range sv.requiredServices {
		check, ok := sv.checks[serviceName]
		if !ok {
			logger.Log.Warn("Unknown service type in validation",
				zap.String("service", serviceName),
			)
			continue
		}
		if check == nil {
			return fmt.Errorf("required service '%s' is not configured", serviceName)
		}

		timeoutCtx, cancel := context.WithTimeout(ctx, sv.timeout)
		err := check(timeoutCtx)
		cancel()
		if err != nil {
			logger.Log.Error("Required service validation failed",
				zap.String("service", serviceName),
				zap.Error(err),
			)
			return fmt.Errorf("required service '%s' validation failed: %w", serviceName, err)
		}

		logger.Log.Info("Service validated successfully",
			zap.String("service", serviceName),
		)
	}

	logger.Log.Info("All required services validated successfully")
	return nil
}

// parseRequiredServices parses the NEXUS_REQUIRE_* environment variables
func parseRequiredServices() []string {
	var required []string
	for _, service := range knownServices {
		envVar := fmt.Sprintf("NEXUS_REQUIRE_%s", strings.ToUpper(service))
		if isTruthy(os.Getenv(envVar)) {
			required = append(required, service)
		}
	}
	return required
}

// isTruthy checks if a string value represents a truthy value
func isTruthy(value string) bool {
	if value == "" {
		return false
	}

	value = strings.ToLower(strings.TrimSpace(value))
	return value == "1" || value == "true" || value == "yes" || value == "on"
}
