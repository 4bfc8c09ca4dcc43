package inventory

import (
	"fmt"
	"strings"
	"time"

	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/erp/stockledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Aggregate type constant
const AggregateTypeLocation = "Location"

const (
	maxLocationNameLength = 100
	maxLocationCodeLength = 50
)

var (
	minTemperature = decimal.NewFromInt(-50)
	maxTemperature = decimal.NewFromInt(100)
	maxHumidity    = decimal.NewFromInt(100)
)

// LocationType classifies a storage place
type LocationType string

const (
	LocationTypeWarehouse     LocationType = "WAREHOUSE"
	LocationTypeStore         LocationType = "STORE"
	LocationTypeFrozenStorage LocationType = "FROZEN_STORAGE"
	LocationTypeColdStorage   LocationType = "COLD_STORAGE"
	LocationTypeDryStorage    LocationType = "DRY_STORAGE"
	LocationTypeQuarantine    LocationType = "QUARANTINE"
	LocationTypeProduction    LocationType = "PRODUCTION"
	LocationTypeDamaged       LocationType = "DAMAGED"
)

// IsValid checks if the location type is known
func (t LocationType) IsValid() bool {
	switch t {
	case LocationTypeWarehouse, LocationTypeStore, LocationTypeFrozenStorage, LocationTypeColdStorage,
		LocationTypeDryStorage, LocationTypeQuarantine, LocationTypeProduction, LocationTypeDamaged:
		return true
	}
	return false
}

// AccessLevel restricts who may operate on a location
type AccessLevel string

const (
	AccessLevelPublic     AccessLevel = "PUBLIC"
	AccessLevelRestricted AccessLevel = "RESTRICTED"
	AccessLevelSecured    AccessLevel = "SECURED"
)

// IsValid checks if the access level is known
func (a AccessLevel) IsValid() bool {
	switch a {
	case AccessLevelPublic, AccessLevelRestricted, AccessLevelSecured:
		return true
	}
	return false
}

// PhysicalProperties describes capacity and climate of a location
type PhysicalProperties struct {
	Capacity              *decimal.Decimal
	CapacityUnit          string
	Temperature           *decimal.Decimal
	TemperatureControlled bool
	Humidity              *decimal.Decimal
	HumidityControlled    bool
}

// Hierarchy places a location inside a parent and an addressable slot
type Hierarchy struct {
	ParentLocationID *uuid.UUID
	Zone             string
	Aisle            string
	Shelf            string
	Bin              string
}

// AccessSettings controls the operations a location supports
type AccessSettings struct {
	RequiresAuthorization bool
	AccessLevel           AccessLevel
	AllowsPicking         bool
	AllowsReceiving       bool
	AllowsShipping        bool
	Priority              int
}

// Location is the aggregate root for a storage place and its per-product thresholds
type Location struct {
	shared.BaseAggregateRoot
	Name               string
	Code               string
	LocationType       LocationType
	Description        string
	IsActive           bool
	DeactivatedAt      *time.Time
	DeactivationReason string
	Physical           PhysicalProperties
	Hierarchy          Hierarchy
	Access             AccessSettings
	StockLevels        []LocationStockLevel
}

var codeCaser = cases.Upper(language.Und)

// NormalizeLocationCode trims and uppercases a location code
func NormalizeLocationCode(code string) string {
	return codeCaser.String(strings.TrimSpace(code))
}

// NewLocation creates an active location seeded with the defaults of its type
func NewLocation(id uuid.UUID, name, code string, locationType LocationType, now time.Time) (*Location, error) {
	if id == uuid.Nil {
		return nil, shared.NewInvalidArgumentError("INVALID_ID", "Location ID cannot be empty")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, shared.NewInvalidArgumentError("INVALID_NAME", "Location name cannot be empty")
	}
	if len(name) > maxLocationNameLength {
		return nil, shared.NewInvalidArgumentError("INVALID_NAME",
			fmt.Sprintf("Location name cannot exceed %d characters", maxLocationNameLength))
	}
	code = NormalizeLocationCode(code)
	if code == "" {
		return nil, shared.NewInvalidArgumentError("INVALID_CODE", "Location code cannot be empty")
	}
	if len(code) > maxLocationCodeLength {
		return nil, shared.NewInvalidArgumentError("INVALID_CODE",
			fmt.Sprintf("Location code cannot exceed %d characters", maxLocationCodeLength))
	}
	if !locationType.IsValid() {
		return nil, shared.NewInvalidArgumentError("INVALID_LOCATION_TYPE",
			fmt.Sprintf("Unknown location type %q", locationType))
	}

	loc := &Location{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(id, now),
		Name:              name,
		Code:              code,
		LocationType:      locationType,
		IsActive:          true,
		StockLevels:       make([]LocationStockLevel, 0),
	}
	loc.applyTypeDefaults()

	loc.AddDomainEvent(NewLocationCreatedEvent(loc, now))
	return loc, nil
}

// applyTypeDefaults seeds access and climate configuration from the location type
func (l *Location) applyTypeDefaults() {
	l.Access = AccessSettings{
		AccessLevel:     AccessLevelPublic,
		AllowsPicking:   true,
		AllowsReceiving: true,
		AllowsShipping:  true,
		Priority:        1,
	}

	switch l.LocationType {
	case LocationTypeFrozenStorage:
		temp := decimal.NewFromInt(-18)
		l.Physical.Temperature = &temp
		l.Physical.TemperatureControlled = true
		l.Access.AccessLevel = AccessLevelRestricted
	case LocationTypeColdStorage:
		temp := decimal.NewFromInt(4)
		l.Physical.Temperature = &temp
		l.Physical.TemperatureControlled = true
		l.Access.AccessLevel = AccessLevelRestricted
	case LocationTypeDryStorage:
		humidity := decimal.NewFromInt(40)
		l.Physical.Humidity = &humidity
		l.Physical.HumidityControlled = true
	case LocationTypeQuarantine, LocationTypeDamaged:
		l.Access.AccessLevel = AccessLevelSecured
		l.Access.RequiresAuthorization = true
		l.Access.AllowsPicking = false
		l.Access.AllowsShipping = false
	case LocationTypeStore:
		l.Access.AllowsShipping = false
	case LocationTypeProduction:
		l.Access.AccessLevel = AccessLevelRestricted
		l.Access.AllowsShipping = false
	case LocationTypeWarehouse:
	}
}

// Rename changes the display name
func (l *Location) Rename(name, description string, now time.Time) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return shared.NewInvalidArgumentError("INVALID_NAME", "Location name cannot be empty")
	}
	if len(name) > maxLocationNameLength {
		return shared.NewInvalidArgumentError("INVALID_NAME",
			fmt.Sprintf("Location name cannot exceed %d characters", maxLocationNameLength))
	}
	l.Name = name
	l.Description = description
	l.Touch(now)
	l.IncrementVersion()
	return nil
}

// ConfigurePhysicalProperties validates and replaces capacity and climate settings
func (l *Location) ConfigurePhysicalProperties(props PhysicalProperties, now time.Time) error {
	if props.Capacity != nil && !props.Capacity.IsPositive() {
		return shared.NewInvalidArgumentError("INVALID_CAPACITY", "Capacity must be greater than zero")
	}
	if props.Temperature != nil &&
		(props.Temperature.LessThan(minTemperature) || props.Temperature.GreaterThan(maxTemperature)) {
		return shared.NewInvalidArgumentError("INVALID_TEMPERATURE",
			fmt.Sprintf("Temperature must be between %s and %s", minTemperature, maxTemperature))
	}
	if props.Humidity != nil &&
		(props.Humidity.IsNegative() || props.Humidity.GreaterThan(maxHumidity)) {
		return shared.NewInvalidArgumentError("INVALID_HUMIDITY", "Humidity must be between 0 and 100")
	}

	l.Physical = props
	l.Touch(now)
	l.IncrementVersion()
	return nil
}

// ConfigureHierarchy sets the parent location and slot address
func (l *Location) ConfigureHierarchy(h Hierarchy, now time.Time) error {
	if h.ParentLocationID != nil && *h.ParentLocationID == l.ID {
		return shared.NewInvariantViolationError("CYCLIC_PARENT", "A location cannot be its own parent")
	}
	h.Zone = strings.TrimSpace(h.Zone)
	h.Aisle = strings.TrimSpace(h.Aisle)
	h.Shelf = strings.TrimSpace(h.Shelf)
	h.Bin = strings.TrimSpace(h.Bin)

	l.Hierarchy = h
	l.Touch(now)
	l.IncrementVersion()
	return nil
}

// ConfigureAccess replaces the access settings
func (l *Location) ConfigureAccess(a AccessSettings, now time.Time) error {
	if !a.AccessLevel.IsValid() {
		return shared.NewInvalidArgumentError("INVALID_ACCESS_LEVEL",
			fmt.Sprintf("Unknown access level %q", a.AccessLevel))
	}
	if a.Priority <= 0 {
		return shared.NewInvalidArgumentError("INVALID_PRIORITY", "Priority must be positive")
	}

	l.Access = a
	l.Touch(now)
	l.IncrementVersion()
	return nil
}

// SetStockThresholds creates or replaces the thresholds for a product
func (l *Location) SetStockThresholds(productID uuid.UUID, thresholds Thresholds, now time.Time) (*LocationStockLevel, error) {
	if productID == uuid.Nil {
		return nil, shared.NewInvalidArgumentError("INVALID_PRODUCT", "Product ID cannot be empty")
	}

	if level := l.StockLevelFor(productID); level != nil {
		if err := level.UpdateThresholds(thresholds, now); err != nil {
			return nil, err
		}
		l.Touch(now)
		l.IncrementVersion()
		l.AddDomainEvent(NewLocationThresholdsChangedEvent(l, level, now))
		return level, nil
	}

	level, err := NewLocationStockLevel(l.ID, productID, thresholds, now)
	if err != nil {
		return nil, err
	}
	l.StockLevels = append(l.StockLevels, *level)
	l.Touch(now)
	l.IncrementVersion()

	stored := &l.StockLevels[len(l.StockLevels)-1]
	l.AddDomainEvent(NewLocationThresholdsChangedEvent(l, stored, now))
	return stored, nil
}

// RemoveStockThresholds drops the thresholds of a product
func (l *Location) RemoveStockThresholds(productID uuid.UUID, now time.Time) error {
	for i := range l.StockLevels {
		if l.StockLevels[i].ProductID == productID {
			l.StockLevels = append(l.StockLevels[:i], l.StockLevels[i+1:]...)
			l.Touch(now)
			l.IncrementVersion()
			return nil
		}
	}
	return shared.NewDomainError(shared.KindNotFound, "STOCK_LEVEL_NOT_FOUND",
		fmt.Sprintf("No thresholds configured for product %s", productID))
}

// StockLevelFor returns the thresholds of a product, or nil
func (l *Location) StockLevelFor(productID uuid.UUID) *LocationStockLevel {
	for i := range l.StockLevels {
		if l.StockLevels[i].ProductID == productID {
			return &l.StockLevels[i]
		}
	}
	return nil
}

// CheckAlert evaluates the product's thresholds against a current quantity.
// Returns false when the product has no thresholds or none is breached.
func (l *Location) CheckAlert(productID uuid.UUID, current valueobject.StockQuantity) (AlertType, bool) {
	level := l.StockLevelFor(productID)
	if level == nil {
		return "", false
	}
	return level.CheckAlertLevel(current)
}

// Deactivate takes the location out of service
func (l *Location) Deactivate(reason string, now time.Time) error {
	if !l.IsActive {
		return shared.NewInvalidStateError("LOCATION_ALREADY_INACTIVE", "Location is already inactive")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return shared.NewInvalidArgumentError("INVALID_REASON", "Deactivation reason is required")
	}

	l.IsActive = false
	l.DeactivatedAt = &now
	l.DeactivationReason = reason
	l.Touch(now)
	l.IncrementVersion()

	l.AddDomainEvent(NewLocationDeactivatedEvent(l, reason, now))
	return nil
}

// Reactivate puts the location back in service
func (l *Location) Reactivate(now time.Time) error {
	if l.IsActive {
		return shared.NewInvalidStateError("LOCATION_ALREADY_ACTIVE", "Location is already active")
	}

	l.IsActive = true
	l.DeactivatedAt = nil
	l.DeactivationReason = ""
	l.Touch(now)
	l.IncrementVersion()

	l.AddDomainEvent(NewLocationReactivatedEvent(l, now))
	return nil
}

// IsSuitableForProduct checks the controlled-environment flags against product needs
func (l *Location) IsSuitableForProduct(requiresTemperatureControl, requiresHumidityControl bool) bool {
	if requiresTemperatureControl && !l.Physical.TemperatureControlled {
		return false
	}
	if requiresHumidityControl && !l.Physical.HumidityControlled {
		return false
	}
	return true
}
