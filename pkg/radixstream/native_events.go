package radixstream

import "fmt"

// NativeEventKind is the closed, finite enumeration of well-known ledger
// primitive events. Resolve maps an event name and entity classification
// to one of these, or reports that the event is not a recognized native
// primitive.
type NativeEventKind int

const (
	_ NativeEventKind = iota

	// Resource manager
	NativeVaultCreation
	NativeMintFungibleResource
	NativeBurnFungibleResource
	NativeMintNonFungibleResource
	NativeBurnNonFungibleResource

	// Metadata
	NativeSetMetadata
	NativeRemoveMetadata

	// Fungible vault
	NativeFungibleVaultWithdraw
	NativeFungibleVaultDeposit
	NativeFungibleVaultRecall
	NativeFungibleVaultLockFee
	NativeFungibleVaultPayFee

	// Non-fungible vault
	NativeNonFungibleVaultWithdraw
	NativeNonFungibleVaultDeposit
	NativeNonFungibleVaultRecall

	// One-resource pool
	NativeOneResourcePoolWithdraw
	NativeOneResourcePoolDeposit
	NativeOneResourcePoolRedemption
	NativeOneResourcePoolContribution

	// Two-resource pool
	NativeTwoResourcePoolWithdraw
	NativeTwoResourcePoolDeposit
	NativeTwoResourcePoolRedemption
	NativeTwoResourcePoolContribution

	// Multi-resource pool
	NativeMultiResourcePoolWithdraw
	NativeMultiResourcePoolDeposit
	NativeMultiResourcePoolRedemption
	NativeMultiResourcePoolContribution

	// Account locker
	NativeAccountLockerStore
	NativeAccountLockerRecover
	NativeAccountLockerClaim

	// Validator
	NativeValidatorRegister
	NativeValidatorUnregister
	NativeValidatorStake
	NativeValidatorUnstake
	NativeValidatorClaimXrd
	NativeValidatorUpdateAcceptingStakeDelegationState
	NativeValidatorProtocolUpdateReadinessSignal
	NativeValidatorEmissionApplied
	NativeValidatorRewardApplied

	// Consensus manager
	NativeConsensusManagerRoundChange
	NativeConsensusManagerEpochChange

	// Role assignment
	NativeRoleAssignmentSetRole
	NativeRoleAssignmentSetOwnerRole
	NativeRoleAssignmentLockOwnerRole

	// Account
	NativeAccountWithdraw
	NativeAccountDeposit
	NativeAccountRejectedDeposit
	NativeAccountAddAuthorizedDepositor
	NativeAccountRemoveAuthorizedDepositor
	NativeAccountRemoveResourcePreference
	NativeAccountSetResourcePreference
	NativeAccountSetDefaultDepositRule
)

// ErrNotNative reports that an (event name, entity type) pair does not
// identify a recognized native primitive.
var ErrNotNative = fmt.Errorf("radixstream: not a native event")

// Resolve maps an event name and its emitter's entity type to a
// NativeEventKind. Event names unique across the ledger (VaultCreationEvent,
// SetMetadataEvent, and similar) ignore entityType; names reused across
// entity families (WithdrawEvent, DepositEvent, RecallEvent,
// RedemptionEvent, ContributionEvent) are disambiguated by it. Resolve is a
// pure function: the enumeration is fixed, and adding a new ledger
// primitive means extending this function.
func Resolve(name string, entityType EntityType) (NativeEventKind, error) {
	switch name {
	case "VaultCreationEvent":
		return NativeVaultCreation, nil
	case "MintFungibleResourceEvent":
		return NativeMintFungibleResource, nil
	case "BurnFungibleResourceEvent":
		return NativeBurnFungibleResource, nil
	case "MintNonFungibleResourceEvent":
		return NativeMintNonFungibleResource, nil
	case "BurnNonFungibleResourceEvent":
		return NativeBurnNonFungibleResource, nil

	case "SetMetadataEvent":
		return NativeSetMetadata, nil
	case "RemoveMetadataEvent":
		return NativeRemoveMetadata, nil

	case "LockFeeEvent":
		return NativeFungibleVaultLockFee, nil
	case "PayFeeEvent":
		return NativeFungibleVaultPayFee, nil

	case "WithdrawEvent":
		switch entityType {
		case EntityInternalFungibleVault:
			return NativeFungibleVaultWithdraw, nil
		case EntityInternalNonFungibleVault:
			return NativeNonFungibleVaultWithdraw, nil
		case EntityGlobalOneResourcePool:
			return NativeOneResourcePoolWithdraw, nil
		case EntityGlobalTwoResourcePool:
			return NativeTwoResourcePoolWithdraw, nil
		case EntityGlobalMultiResourcePool:
			return NativeMultiResourcePoolWithdraw, nil
		case EntityGlobalAccount:
			return NativeAccountWithdraw, nil
		}
		return 0, ErrNotNative

	case "DepositEvent":
		switch entityType {
		case EntityInternalFungibleVault:
			return NativeFungibleVaultDeposit, nil
		case EntityInternalNonFungibleVault:
			return NativeNonFungibleVaultDeposit, nil
		case EntityGlobalOneResourcePool:
			return NativeOneResourcePoolDeposit, nil
		case EntityGlobalTwoResourcePool:
			return NativeTwoResourcePoolDeposit, nil
		case EntityGlobalMultiResourcePool:
			return NativeMultiResourcePoolDeposit, nil
		case EntityGlobalAccount:
			return NativeAccountDeposit, nil
		}
		return 0, ErrNotNative

	case "RecallEvent":
		switch entityType {
		case EntityInternalFungibleVault:
			return NativeFungibleVaultRecall, nil
		case EntityInternalNonFungibleVault:
			return NativeNonFungibleVaultRecall, nil
		}
		return 0, ErrNotNative

	case "RedemptionEvent":
		switch entityType {
		case EntityGlobalOneResourcePool:
			return NativeOneResourcePoolRedemption, nil
		case EntityGlobalTwoResourcePool:
			return NativeTwoResourcePoolRedemption, nil
		case EntityGlobalMultiResourcePool:
			return NativeMultiResourcePoolRedemption, nil
		}
		return 0, ErrNotNative

	case "ContributionEvent":
		switch entityType {
		case EntityGlobalOneResourcePool:
			return NativeOneResourcePoolContribution, nil
		case EntityGlobalTwoResourcePool:
			return NativeTwoResourcePoolContribution, nil
		case EntityGlobalMultiResourcePool:
			return NativeMultiResourcePoolContribution, nil
		}
		return 0, ErrNotNative

	case "StoreEvent":
		return NativeAccountLockerStore, nil
	case "RecoverEvent":
		return NativeAccountLockerRecover, nil
	case "ClaimEvent":
		return NativeAccountLockerClaim, nil

	case "RegisterValidatorEvent":
		return NativeValidatorRegister, nil
	case "UnregisterValidatorEvent":
		return NativeValidatorUnregister, nil
	case "StakeEvent":
		return NativeValidatorStake, nil
	case "UnstakeEvent":
		return NativeValidatorUnstake, nil
	case "ClaimXrdEvent":
		return NativeValidatorClaimXrd, nil
	case "UpdateAcceptingStakeDelegationStateEvent":
		return NativeValidatorUpdateAcceptingStakeDelegationState, nil
	case "ProtocolUpdateReadinessSignalEvent":
		return NativeValidatorProtocolUpdateReadinessSignal, nil
	case "ValidatorEmissionAppliedEvent":
		return NativeValidatorEmissionApplied, nil
	case "ValidatorRewardAppliedEvent":
		return NativeValidatorRewardApplied, nil

	case "RoundChangeEvent":
		return NativeConsensusManagerRoundChange, nil
	case "EpochChangeEvent":
		return NativeConsensusManagerEpochChange, nil

	case "SetRoleEvent":
		return NativeRoleAssignmentSetRole, nil
	case "SetOwnerRoleEvent":
		return NativeRoleAssignmentSetOwnerRole, nil
	case "LockOwnerRoleEvent":
		return NativeRoleAssignmentLockOwnerRole, nil

	case "RejectedDepositEvent":
		return NativeAccountRejectedDeposit, nil
	case "AddAuthorizedDepositorEvent":
		return NativeAccountAddAuthorizedDepositor, nil
	case "RemoveAuthorizedDepositorEvent":
		return NativeAccountRemoveAuthorizedDepositor, nil
	case "RemoveResourcePreferenceEvent":
		return NativeAccountRemoveResourcePreference, nil
	case "SetResourcePreferenceEvent":
		return NativeAccountSetResourcePreference, nil
	case "SetDefaultDepositRuleEvent":
		return NativeAccountSetDefaultDepositRule, nil

	default:
		return 0, ErrNotNative
	}
}
