package ledger

import (
	"fmt"
	"strconv"
)

// AccountScope is the top-level account namespace.
type AccountScope uint8

const (
	AccountScopeUser AccountScope = iota
	AccountScopeTreasury
	AccountScopeSystem
	AccountScopeExternal
)

// AccountSubType is the account purpose within a scope.
type AccountSubType uint8

const (
	// User sub-types
	SubTypeCollateral AccountSubType = iota
	SubTypeMargin

	// Treasury sub-types
	SubTypeEpochReserve

	// System sub-types
	SubTypeInsurance

	// External sub-types
	SubTypeCustody
)

// AssetID maps asset symbols to numeric ids.
type AssetID uint16

const (
	AssetUSDC AssetID = 1 // collateral asset
	AssetUNXV AssetID = 2 // protocol discount token
)

var (
	assetToID = map[string]AssetID{
		"USDC": AssetUSDC,
		"UNXV": AssetUNXV,
	}
	idToAsset = map[AssetID]string{
		AssetUSDC: "USDC",
		AssetUNXV: "UNXV",
	}
)

func GetAssetID(asset string) (AssetID, bool) {
	id, ok := assetToID[asset]
	return id, ok
}

func GetAssetName(id AssetID) (string, bool) {
	name, ok := idToAsset[id]
	return name, ok
}

// AccountKey identifies a balance bucket. Entity holds the owner address for
// user accounts, the epoch index (decimal string) for treasury reserves, and
// is empty for system/external accounts.
type AccountKey struct {
	Scope   AccountScope
	Entity  string
	SubType AccountSubType
	AssetID AssetID
}

// NewUserAccountKey returns the key for a trader-owned balance.
func NewUserAccountKey(owner string, subType AccountSubType, assetID AssetID) AccountKey {
	return AccountKey{
		Scope:   AccountScopeUser,
		Entity:  owner,
		SubType: subType,
		AssetID: assetID,
	}
}

// NewEpochReserveKey returns the treasury reserve account for one epoch.
// Fee remainders are deposited here tagged with the epoch they accrued in,
// and the bot reward claim path is the only withdrawal path.
func NewEpochReserveKey(epoch uint64, assetID AssetID) AccountKey {
	return AccountKey{
		Scope:   AccountScopeTreasury,
		Entity:  strconv.FormatUint(epoch, 10),
		SubType: SubTypeEpochReserve,
		AssetID: assetID,
	}
}

// NewSystemAccountKey returns a named protocol-level account.
func NewSystemAccountKey(subType AccountSubType, assetID AssetID) AccountKey {
	return AccountKey{
		Scope:   AccountScopeSystem,
		SubType: subType,
		AssetID: assetID,
	}
}

// NewCustodyKey returns the external boundary account. Token custody itself
// is out of scope; this account is the journal counter-side for value
// entering or leaving the core.
func NewCustodyKey(assetID AssetID) AccountKey {
	return AccountKey{
		Scope:   AccountScopeExternal,
		SubType: SubTypeCustody,
		AssetID: assetID,
	}
}

// AccountPath returns the string form used for storage and logging.
func (k AccountKey) AccountPath() string {
	assetName, _ := GetAssetName(k.AssetID)

	switch k.Scope {
	case AccountScopeUser:
		return fmt.Sprintf("user:%s:%s:%s", k.Entity, k.subTypeName(), assetName)
	case AccountScopeTreasury:
		return fmt.Sprintf("treasury:epoch:%s:%s", k.Entity, assetName)
	case AccountScopeSystem:
		return fmt.Sprintf("system:%s:%s", k.subTypeName(), assetName)
	case AccountScopeExternal:
		return fmt.Sprintf("external:%s:%s", k.subTypeName(), assetName)
	}
	return "unknown"
}

// EpochOf parses the epoch index out of a treasury reserve key.
func (k AccountKey) EpochOf() (uint64, bool) {
	if k.Scope != AccountScopeTreasury {
		return 0, false
	}
	epoch, err := strconv.ParseUint(k.Entity, 10, 64)
	if err != nil {
		return 0, false
	}
	return epoch, true
}

func (k AccountKey) subTypeName() string {
	switch k.SubType {
	case SubTypeCollateral:
		return "collateral"
	case SubTypeMargin:
		return "margin"
	case SubTypeEpochReserve:
		return "epoch_reserve"
	case SubTypeInsurance:
		return "insurance"
	case SubTypeCustody:
		return "custody"
	default:
		return "unknown"
	}
}
