package radixstream

import "time"

// Event is a single emitted event carried by a Transaction. Payload is
// opaque binary SBOR; decoding it is the handler's responsibility.
type Event struct {
	Name    string
	Payload []byte
	Emitter Emitter
}

// ObjectModuleID identifies which module of an entity raised an event.
// Main is the entity's own business logic; the others are ledger-reserved
// modules that can themselves be event sources (e.g. RoleAssignment).
type ObjectModuleID int

const (
	ModuleMain ObjectModuleID = iota
	ModuleMetadata
	ModuleRoyalty
	ModuleRoleAssignment
)

// EmitterKind distinguishes the two shapes an Emitter can take.
type EmitterKind int

const (
	EmitterMethod EmitterKind = iota
	EmitterFunction
)

// Emitter is the on-ledger identity that produced an Event: either a
// method call on an entity, or a function call on a package blueprint.
// Exactly one of the Method or Function fields is meaningful, selected by
// Kind; Address returns the dispatch key for either case.
type Emitter struct {
	Kind EmitterKind

	// Method fields.
	EntityAddress  string
	EntityType     EntityType
	IsGlobal       bool
	ObjectModuleID ObjectModuleID

	// Function fields.
	PackageAddress string
	BlueprintName  string
}

// Address returns the string used as the userspace dispatch key: the
// entity address for a method emitter, the package address for a function
// emitter.
func (e Emitter) Address() string {
	if e.Kind == EmitterFunction {
		return e.PackageAddress
	}
	return e.EntityAddress
}

// EntityType is the closed enumeration of ledger entity classifications
// used by the native event resolver to disambiguate event names that are
// reused across entity families.
type EntityType int

const (
	EntityUnknown EntityType = iota
	EntityGlobalPackage
	EntityGlobalConsensusManager
	EntityGlobalValidator
	EntityGlobalGenericComponent
	EntityGlobalAccount
	EntityGlobalIdentity
	EntityGlobalAccessController
	EntityGlobalVirtualSecp256k1Account
	EntityGlobalVirtualSecp256k1Identity
	EntityGlobalVirtualEd25519Account
	EntityGlobalVirtualEd25519Identity
	EntityGlobalFungibleResource
	EntityInternalFungibleVault
	EntityGlobalNonFungibleResource
	EntityInternalNonFungibleVault
	EntityInternalGenericComponent
	EntityInternalKeyValueStore
	EntityGlobalOneResourcePool
	EntityGlobalTwoResourcePool
	EntityGlobalMultiResourcePool
	EntityGlobalTransactionTracker
	EntityGlobalAccountLocker
)

var entityTypeNames = map[string]EntityType{
	"GlobalPackage":                  EntityGlobalPackage,
	"GlobalConsensusManager":         EntityGlobalConsensusManager,
	"GlobalValidator":                EntityGlobalValidator,
	"GlobalGenericComponent":         EntityGlobalGenericComponent,
	"GlobalAccount":                  EntityGlobalAccount,
	"GlobalIdentity":                 EntityGlobalIdentity,
	"GlobalAccessController":         EntityGlobalAccessController,
	"GlobalVirtualSecp256k1Account":  EntityGlobalVirtualSecp256k1Account,
	"GlobalVirtualSecp256k1Identity": EntityGlobalVirtualSecp256k1Identity,
	"GlobalVirtualEd25519Account":    EntityGlobalVirtualEd25519Account,
	"GlobalVirtualEd25519Identity":   EntityGlobalVirtualEd25519Identity,
	"GlobalFungibleResource":         EntityGlobalFungibleResource,
	"InternalFungibleVault":          EntityInternalFungibleVault,
	"GlobalNonFungibleResource":      EntityGlobalNonFungibleResource,
	"InternalNonFungibleVault":       EntityInternalNonFungibleVault,
	"InternalGenericComponent":       EntityInternalGenericComponent,
	"InternalKeyValueStore":          EntityInternalKeyValueStore,
	"GlobalOneResourcePool":          EntityGlobalOneResourcePool,
	"GlobalTwoResourcePool":          EntityGlobalTwoResourcePool,
	"GlobalMultiResourcePool":        EntityGlobalMultiResourcePool,
	"GlobalTransactionTracker":       EntityGlobalTransactionTracker,
	"GlobalAccountLocker":            EntityGlobalAccountLocker,
}

// ParseEntityType maps the wire-format entity type name (as carried by the
// gateway, database and file sources) to its EntityType constant. An
// unrecognized name returns EntityUnknown; this is not itself an error, it
// just means the native resolver and generic-component check will never
// match that event.
func ParseEntityType(s string) EntityType {
	if t, ok := entityTypeNames[s]; ok {
		return t
	}
	return EntityUnknown
}

// Transaction is one confirmed, ordered ledger transaction and the events
// it emitted. StateVersion is the strictly increasing cursor within a
// single source; sources that filter transactions out (failed or non-user
// ones) deliver state versions with gaps.
type Transaction struct {
	IntentHash   string
	StateVersion uint64
	ConfirmedAt  *time.Time
	Events       []Event
}
