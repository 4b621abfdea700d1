// Package wireemitter decodes the tagged-union emitter shape shared by the
// gateway, database, and file sources: `{"type": "Method", "entity": {...}}`
// or `{"type": "Function", ...}`, matching the
// `EventEmitterIdentifier`/`EntityReference` shape the sources are grounded
// on in original_source/src/sources/database.rs.
package wireemitter

import (
	"strings"

	"github.com/ociswap/radixstream/pkg/radixstream"
)

// EntityReference is the nested shape carried by a Method emitter,
// matching original_source's EntityReference{entity_type, is_global,
// entity_address}.
type EntityReference struct {
	EntityAddress string `json:"entity_address" yaml:"entity_address"`
	EntityType    string `json:"entity_type" yaml:"entity_type"`
	IsGlobal      bool   `json:"is_global" yaml:"is_global"`
}

// Emitter is the on-wire tagged-union emitter shape. JSON and YAML tags
// are both present since the file source accepts either encoding.
// object_module_id is not part of EntityReference; it is carried alongside
// it, top-level, on the Method variant.
type Emitter struct {
	Type           string          `json:"type" yaml:"type"`
	Entity         EntityReference `json:"entity,omitempty" yaml:"entity,omitempty"`
	ObjectModuleID string          `json:"object_module_id,omitempty" yaml:"object_module_id,omitempty"`
	PackageAddress string          `json:"package_address,omitempty" yaml:"package_address,omitempty"`
	BlueprintName  string          `json:"blueprint_name,omitempty" yaml:"blueprint_name,omitempty"`
}

// ToEmitter converts the wire shape to the canonical radixstream.Emitter.
func (e Emitter) ToEmitter() radixstream.Emitter {
	if strings.EqualFold(e.Type, "Function") {
		return radixstream.Emitter{
			Kind:           radixstream.EmitterFunction,
			PackageAddress: e.PackageAddress,
			BlueprintName:  e.BlueprintName,
		}
	}
	return radixstream.Emitter{
		Kind:           radixstream.EmitterMethod,
		EntityAddress:  e.Entity.EntityAddress,
		EntityType:     radixstream.ParseEntityType(e.Entity.EntityType),
		IsGlobal:       e.Entity.IsGlobal,
		ObjectModuleID: ParseModuleID(e.ObjectModuleID),
	}
}

// ParseModuleID maps the wire-format object module name to its
// radixstream.ObjectModuleID constant; an unrecognized or empty name maps
// to ModuleMain, the overwhelmingly common case.
func ParseModuleID(s string) radixstream.ObjectModuleID {
	switch s {
	case "Metadata":
		return radixstream.ModuleMetadata
	case "Royalty":
		return radixstream.ModuleRoyalty
	case "RoleAssignment":
		return radixstream.ModuleRoleAssignment
	default:
		return radixstream.ModuleMain
	}
}
