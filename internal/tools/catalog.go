package tools

import (
	"github.com/fieldstack/maximo-mcp/internal/maximo"
	"github.com/fieldstack/maximo-mcp/internal/ratelimit"
)

// catalog is the full tool set, in the order advertised over MCP.
var catalog = []Tool{
	{
		Name:        "get_asset",
		Description: "Get asset details by asset number.",
		Args: []Arg{
			{Name: "assetnum", Type: TypeString, Description: "Asset number", Required: true},
			{Name: "siteid", Type: TypeString, Description: "Site ID"},
		},
		RateClass: ratelimit.ClassGeneral,
		Entity:    maximo.EntityAsset,
		CacheOp:   OpGet,
		TTLBucket: "asset",
	},
	{
		Name:        "search_assets",
		Description: "Search assets by free text and filters.",
		Args: []Arg{
			{Name: "query", Type: TypeString, Description: "Free text searched in description and asset number"},
			{Name: "status", Type: TypeString, Description: "Asset status filter"},
			{Name: "location", Type: TypeString, Description: "Location filter"},
			{Name: "assettype", Type: TypeString, Description: "Asset type filter"},
			{Name: "siteid", Type: TypeString, Description: "Site ID filter"},
			{Name: "page_size", Type: TypeInteger, Description: "Maximum number of results", Default: 100},
		},
		RateClass: ratelimit.ClassSearch,
		Entity:    maximo.EntityAsset,
		CacheOp:   OpSearch,
		TTLBucket: "search",
	},
	{
		Name:        "create_asset",
		Description: "Create a new asset.",
		Args: []Arg{
			{Name: "assetnum", Type: TypeString, Description: "Asset number", Required: true},
			{Name: "siteid", Type: TypeString, Description: "Site ID", Required: true},
			{Name: "description", Type: TypeString, Description: "Asset description", Required: true},
			{Name: "assettype", Type: TypeString, Description: "Asset type"},
			{Name: "location", Type: TypeString, Description: "Location"},
			{Name: "status", Type: TypeString, Description: "Initial status", Default: "NOT READY"},
		},
		AllowExtra:  true,
		RateClass:   ratelimit.ClassCreate,
		Entity:      maximo.EntityAsset,
		Mutation:    true,
		Invalidates: []maximo.Entity{maximo.EntityAsset},
	},
	{
		Name:        "update_asset_status",
		Description: "Change the status of an existing asset.",
		Args: []Arg{
			{Name: "assetnum", Type: TypeString, Description: "Asset number", Required: true},
			{Name: "siteid", Type: TypeString, Description: "Site ID", Required: true},
			{Name: "new_status", Type: TypeString, Description: "New status value", Required: true},
			{Name: "memo", Type: TypeString, Description: "Memo for the status change"},
		},
		RateClass:   ratelimit.ClassCreate,
		Entity:      maximo.EntityAsset,
		Mutation:    true,
		Invalidates: []maximo.Entity{maximo.EntityAsset},
	},
	{
		Name:        "get_work_order",
		Description: "Get work order details by work order number.",
		Args: []Arg{
			{Name: "wonum", Type: TypeString, Description: "Work order number", Required: true},
			{Name: "siteid", Type: TypeString, Description: "Site ID"},
		},
		RateClass: ratelimit.ClassGeneral,
		Entity:    maximo.EntityWorkOrder,
		CacheOp:   OpGet,
		TTLBucket: "workorder",
	},
	{
		Name:        "search_work_orders",
		Description: "Search work orders by free text and filters.",
		Args: []Arg{
			{Name: "query", Type: TypeString, Description: "Free text searched in description and work order number"},
			{Name: "status", Type: TypeString, Description: "Work order status filter"},
			{Name: "worktype", Type: TypeString, Description: "Work type filter"},
			{Name: "assetnum", Type: TypeString, Description: "Asset number filter"},
			{Name: "location", Type: TypeString, Description: "Location filter"},
			{Name: "siteid", Type: TypeString, Description: "Site ID filter"},
			{Name: "page_size", Type: TypeInteger, Description: "Maximum number of results", Default: 100},
		},
		RateClass: ratelimit.ClassSearch,
		Entity:    maximo.EntityWorkOrder,
		CacheOp:   OpSearch,
		TTLBucket: "search",
	},
	{
		Name:        "create_work_order",
		Description: "Create a new work order.",
		Args: []Arg{
			{Name: "description", Type: TypeString, Description: "Work order description", Required: true},
			{Name: "siteid", Type: TypeString, Description: "Site ID", Required: true},
			{Name: "assetnum", Type: TypeString, Description: "Asset the work is for"},
			{Name: "location", Type: TypeString, Description: "Location"},
			{Name: "worktype", Type: TypeString, Description: "Work type", Default: "CM"},
			{Name: "priority", Type: TypeInteger, Description: "Priority", Default: 2},
		},
		AllowExtra:  true,
		RateClass:   ratelimit.ClassCreate,
		Entity:      maximo.EntityWorkOrder,
		Mutation:    true,
		Invalidates: []maximo.Entity{maximo.EntityWorkOrder},
	},
	{
		Name:        "update_work_order_status",
		Description: "Change the status of an existing work order.",
		Args: []Arg{
			{Name: "wonum", Type: TypeString, Description: "Work order number", Required: true},
			{Name: "siteid", Type: TypeString, Description: "Site ID", Required: true},
			{Name: "new_status", Type: TypeString, Description: "New status value", Required: true},
			{Name: "memo", Type: TypeString, Description: "Memo for the status change"},
		},
		RateClass:   ratelimit.ClassCreate,
		Entity:      maximo.EntityWorkOrder,
		Mutation:    true,
		Invalidates: []maximo.Entity{maximo.EntityWorkOrder},
	},
	{
		Name:        "get_inventory",
		Description: "Get inventory item details.",
		Args: []Arg{
			{Name: "itemnum", Type: TypeString, Description: "Item number", Required: true},
			{Name: "siteid", Type: TypeString, Description: "Site ID"},
			{Name: "location", Type: TypeString, Description: "Storeroom location"},
		},
		RateClass: ratelimit.ClassGeneral,
		Entity:    maximo.EntityInventory,
		CacheOp:   OpGet,
		TTLBucket: "inventory",
	},
	{
		Name:        "search_inventory",
		Description: "Search inventory items, optionally restricted to low stock.",
		Args: []Arg{
			{Name: "query", Type: TypeString, Description: "Free text searched in description and item number"},
			{Name: "low_stock", Type: TypeBoolean, Description: "Only items below their reorder point", Default: false},
			{Name: "siteid", Type: TypeString, Description: "Site ID filter"},
			{Name: "location", Type: TypeString, Description: "Storeroom location filter"},
			{Name: "page_size", Type: TypeInteger, Description: "Maximum number of results", Default: 100},
		},
		RateClass: ratelimit.ClassSearch,
		Entity:    maximo.EntityInventory,
		CacheOp:   OpSearch,
		TTLBucket: "search",
	},
	{
		Name:        "issue_inventory",
		Description: "Issue inventory stock, optionally against a work order.",
		Args: []Arg{
			{Name: "itemnum", Type: TypeString, Description: "Item number", Required: true},
			{Name: "quantity", Type: TypeNumber, Description: "Quantity to issue", Required: true},
			{Name: "siteid", Type: TypeString, Description: "Site ID", Required: true},
			{Name: "location", Type: TypeString, Description: "Storeroom location", Required: true},
			{Name: "to_wonum", Type: TypeString, Description: "Work order to charge the issue to"},
			{Name: "to_location", Type: TypeString, Description: "Destination location"},
			{Name: "memo", Type: TypeString, Description: "Memo for the transaction"},
		},
		RateClass:   ratelimit.ClassCreate,
		Entity:      maximo.EntityInvTransaction,
		Mutation:    true,
		Invalidates: []maximo.Entity{maximo.EntityInventory},
	},
	{
		Name:        "get_user_status",
		Description: "Get user account details including lock status.",
		Args: []Arg{
			{Name: "userid", Type: TypeString, Description: "User ID (login username)", Required: true},
		},
		RateClass: ratelimit.ClassGeneral,
		Entity:    maximo.EntityUser,
		CacheOp:   OpGet,
		TTLBucket: "user",
	},
	{
		Name:        "search_users",
		Description: "Search user accounts by free text and filters.",
		Args: []Arg{
			{Name: "query", Type: TypeString, Description: "Free text searched in user ID, display name and person ID"},
			{Name: "status", Type: TypeString, Description: "Account status filter"},
			{Name: "personid", Type: TypeString, Description: "Person ID filter"},
			{Name: "locked_only", Type: TypeBoolean, Description: "Only locked accounts", Default: false},
			{Name: "page_size", Type: TypeInteger, Description: "Maximum number of results", Default: 100},
		},
		RateClass: ratelimit.ClassSearch,
		Entity:    maximo.EntityUser,
		CacheOp:   OpSearch,
		TTLBucket: "search",
	},
	{
		Name:        "unlock_user_account",
		Description: "Unlock a user account and reset its failed login count.",
		Args: []Arg{
			{Name: "userid", Type: TypeString, Description: "User ID to unlock", Required: true},
			{Name: "memo", Type: TypeString, Description: "Memo for the unlock"},
		},
		RateClass:   ratelimit.ClassCreate,
		Entity:      maximo.EntityUser,
		Mutation:    true,
		Invalidates: []maximo.Entity{maximo.EntityUser},
	},
}

var byName = func() map[string]*Tool {
	m := make(map[string]*Tool, len(catalog))
	for i := range catalog {
		m[catalog[i].Name] = &catalog[i]
	}
	return m
}()

// Catalog returns all tools in advertisement order.
func Catalog() []Tool {
	return catalog
}

// Lookup finds a tool by name.
func Lookup(name string) (*Tool, bool) {
	t, ok := byName[name]
	return t, ok
}
