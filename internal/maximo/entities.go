package maximo

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Entity identifies a Maximo domain object exposed through the gateway.
type Entity string

const (
	EntityAsset          Entity = "asset"
	EntityWorkOrder      Entity = "workorder"
	EntityInventory      Entity = "inventory"
	EntityInvTransaction Entity = "invtrans"
	EntityUser           Entity = "user"
)

// resource maps an entity to its fixed OSLC object structure path and the
// field projection requested on reads.
type resource struct {
	path         string
	selectFields string
	// queryFields are searched by free-text query filters.
	queryFields []string
}

var resources = map[Entity]resource{
	EntityAsset: {
		path:         "/oslc/os/mxapiasset",
		selectFields: "assetnum,siteid,description,status,location,assettype,serialnum,manufacturer,model",
		queryFields:  []string{"description", "assetnum"},
	},
	EntityWorkOrder: {
		path:         "/oslc/os/mxwo",
		selectFields: "wonum,siteid,description,status,worktype,assetnum,location,priority,reportedby,reportdate",
		queryFields:  []string{"description", "wonum"},
	},
	EntityInventory: {
		path:         "/oslc/os/mxapiinventory",
		selectFields: "itemnum,siteid,location,description,curbal,reorder,status,binnum",
		queryFields:  []string{"description", "itemnum"},
	},
	EntityInvTransaction: {
		path: "/oslc/os/mxapiinvtrans",
	},
	EntityUser: {
		path:         "/oslc/os/mxuser",
		selectFields: "userid,personid,displayname,status,loginid,lockedout,failedlogincount,emailaddress,primaryphone",
		queryFields:  []string{"userid", "displayname", "personid"},
	},
}

// QueryFields returns the fields a free-text query searches for entity.
func QueryFields(entity Entity) []string {
	return resources[entity].queryFields
}

// flexBool decodes Maximo boolean-ish values: true/false, 0/1, "0"/"1".
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	switch string(data) {
	case "true", "1":
		*b = true
	case "false", "0", "null", "":
		*b = false
	default:
		return fmt.Errorf("cannot parse %q as boolean", data)
	}
	return nil
}

// flexInt decodes integers that may arrive as numbers or strings.
type flexInt int

func (n *flexInt) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	if string(data) == "null" || len(data) == 0 {
		*n = 0
		return nil
	}
	v, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("cannot parse %q as integer", data)
	}
	*n = flexInt(int(v))
	return nil
}

// flexFloat decodes numeric fields that may arrive as numbers or strings.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	if string(data) == "null" || len(data) == 0 {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("cannot parse %q as number", data)
	}
	*f = flexFloat(v)
	return nil
}

// Asset is the declared output shape for asset reads.
type Asset struct {
	AssetNum     string `json:"assetnum"`
	SiteID       string `json:"siteid,omitempty"`
	Description  string `json:"description,omitempty"`
	Status       string `json:"status,omitempty"`
	Location     string `json:"location,omitempty"`
	AssetType    string `json:"assettype,omitempty"`
	SerialNum    string `json:"serialnum,omitempty"`
	Manufacturer string `json:"manufacturer,omitempty"`
	Model        string `json:"model,omitempty"`
}

// WorkOrder is the declared output shape for work order reads.
type WorkOrder struct {
	WONum       string  `json:"wonum"`
	SiteID      string  `json:"siteid,omitempty"`
	Description string  `json:"description,omitempty"`
	Status      string  `json:"status,omitempty"`
	WorkType    string  `json:"worktype,omitempty"`
	AssetNum    string  `json:"assetnum,omitempty"`
	Location    string  `json:"location,omitempty"`
	Priority    flexInt `json:"priority,omitempty"`
	ReportedBy  string  `json:"reportedby,omitempty"`
	ReportDate  string  `json:"reportdate,omitempty"`
}

// InventoryItem is the declared output shape for inventory reads.
// BelowReorder is derived here so callers get a pre-interpreted boolean
// instead of comparing raw balance fields.
type InventoryItem struct {
	ItemNum      string    `json:"itemnum"`
	SiteID       string    `json:"siteid,omitempty"`
	Location     string    `json:"location,omitempty"`
	Description  string    `json:"description,omitempty"`
	CurBal       flexFloat `json:"curbal"`
	Reorder      flexFloat `json:"reorder"`
	Status       string    `json:"status,omitempty"`
	BinNum       string    `json:"binnum,omitempty"`
	BelowReorder bool      `json:"below_reorder"`
}

// User is the declared output shape for user reads. IsLocked, IsActive
// and FailedLoginCount are derived from the raw lockedout/status fields.
type User struct {
	UserID           string   `json:"userid"`
	PersonID         string   `json:"personid,omitempty"`
	DisplayName      string   `json:"displayname,omitempty"`
	Status           string   `json:"status,omitempty"`
	LoginID          string   `json:"loginid,omitempty"`
	LockedOut        flexBool `json:"lockedout"`
	EmailAddress     string   `json:"emailaddress,omitempty"`
	PrimaryPhone     string   `json:"primaryphone,omitempty"`
	IsLocked         bool     `json:"is_locked"`
	IsActive         bool     `json:"is_active"`
	FailedLoginCount flexInt  `json:"failed_login_count"`
}

// rawUser carries the raw field names Maximo uses before normalization.
type rawUser struct {
	User
	FailedLogins flexInt `json:"failedlogincount"`
}

// envelope is the OSLC collection wrapper around query results.
type envelope struct {
	Member *[]json.RawMessage `json:"member"`
}

// decodeEnvelope extracts the member list from a collection response.
// A response without a member field is an unexpected shape.
func decodeEnvelope(entity Entity, body []byte) ([]json.RawMessage, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, shapeError(entity, err)
	}
	if env.Member == nil {
		return nil, shapeError(entity, fmt.Errorf("missing member collection"))
	}
	return *env.Member, nil
}

// normalizeMember validates one raw member record against the entity's
// declared schema and returns the normalized output shape.
func normalizeMember(entity Entity, raw json.RawMessage) (json.RawMessage, error) {
	switch entity {
	case EntityAsset:
		var a Asset
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, shapeError(entity, err)
		}
		if a.AssetNum == "" {
			return nil, shapeError(entity, fmt.Errorf("missing assetnum"))
		}
		return json.Marshal(a)

	case EntityWorkOrder:
		var w WorkOrder
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, shapeError(entity, err)
		}
		if w.WONum == "" {
			return nil, shapeError(entity, fmt.Errorf("missing wonum"))
		}
		return json.Marshal(w)

	case EntityInventory:
		var item InventoryItem
		if err := json.Unmarshal(raw, &item); err != nil {
			return nil, shapeError(entity, err)
		}
		if item.ItemNum == "" {
			return nil, shapeError(entity, fmt.Errorf("missing itemnum"))
		}
		item.BelowReorder = float64(item.CurBal) < float64(item.Reorder)
		return json.Marshal(item)

	case EntityUser:
		var u rawUser
		if err := json.Unmarshal(raw, &u); err != nil {
			return nil, shapeError(entity, err)
		}
		if u.UserID == "" {
			return nil, shapeError(entity, fmt.Errorf("missing userid"))
		}
		u.IsLocked = bool(u.LockedOut)
		u.IsActive = u.Status == "ACTIVE"
		u.User.FailedLoginCount = u.FailedLogins
		return json.Marshal(u.User)

	default:
		// Transaction records and other write responses pass through.
		return raw, nil
	}
}

// resourceID resolves the OSLC resource identifier of a raw record for
// follow-up PATCH calls: the lean _id field, an entity uid column, or the
// trailing segment of the href.
func resourceID(raw json.RawMessage) string {
	var probe struct {
		ID        json.RawMessage `json:"_id"`
		Href      string          `json:"href"`
		AssetUID  json.RawMessage `json:"assetuid"`
		WOID      json.RawMessage `json:"workorderid"`
		MaxUserID json.RawMessage `json:"maxuserid"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return ""
	}
	for _, candidate := range []json.RawMessage{probe.ID, probe.AssetUID, probe.WOID, probe.MaxUserID} {
		if id := scalarString(candidate); id != "" {
			return id
		}
	}
	if probe.Href != "" {
		parts := strings.Split(strings.TrimRight(probe.Href, "/"), "/")
		return parts[len(parts)-1]
	}
	return ""
}

func scalarString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}
