package dispatch

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fieldstack/maximo-mcp/internal/maximo"
	"github.com/fieldstack/maximo-mcp/internal/tools"
)

// execute performs the upstream operation for one validated invocation.
func (d *Dispatcher) execute(ctx context.Context, tool *tools.Tool, args map[string]any) (json.RawMessage, error) {
	switch tool.Name {
	case "get_asset":
		where := new(maximo.Where).Eq("assetnum", argString(args, "assetnum"))
		eqIfSet(where, args, "siteid")
		return d.fetch(ctx, tool.Entity, where)

	case "search_assets":
		where := searchWhere(tool.Entity, args, "status", "location", "assettype", "siteid")
		return d.search(ctx, tool.Entity, where, argInt(args, "page_size"))

	case "create_asset":
		return d.upstream.Create(ctx, tool.Entity, payload(args))

	case "update_asset_status":
		where := new(maximo.Where).
			Eq("assetnum", argString(args, "assetnum")).
			Eq("siteid", argString(args, "siteid"))
		return d.statusUpdate(ctx, tool.Entity, where, args)

	case "get_work_order":
		where := new(maximo.Where).Eq("wonum", argString(args, "wonum"))
		eqIfSet(where, args, "siteid")
		return d.fetch(ctx, tool.Entity, where)

	case "search_work_orders":
		where := searchWhere(tool.Entity, args, "status", "worktype", "assetnum", "location", "siteid")
		return d.search(ctx, tool.Entity, where, argInt(args, "page_size"))

	case "create_work_order":
		return d.upstream.Create(ctx, tool.Entity, payload(args))

	case "update_work_order_status":
		where := new(maximo.Where).
			Eq("wonum", argString(args, "wonum")).
			Eq("siteid", argString(args, "siteid"))
		return d.statusUpdate(ctx, tool.Entity, where, args)

	case "get_inventory":
		where := new(maximo.Where).Eq("itemnum", argString(args, "itemnum"))
		eqIfSet(where, args, "siteid")
		eqIfSet(where, args, "location")
		return d.fetch(ctx, tool.Entity, where)

	case "search_inventory":
		where := searchWhere(tool.Entity, args, "siteid", "location")
		if argBool(args, "low_stock") {
			where.FieldBelow("curbal", "reorder")
		}
		return d.search(ctx, tool.Entity, where, argInt(args, "page_size"))

	case "issue_inventory":
		issue := map[string]any{
			"itemnum":   argString(args, "itemnum"),
			"quantity":  args["quantity"],
			"siteid":    argString(args, "siteid"),
			"location":  argString(args, "location"),
			"transtype": "ISSUE",
		}
		if v := argString(args, "to_wonum"); v != "" {
			issue["wonum"] = v
		}
		if v := argString(args, "to_location"); v != "" {
			issue["tolocation"] = v
		}
		if v := argString(args, "memo"); v != "" {
			issue["memo"] = v
		}
		return d.upstream.Create(ctx, tool.Entity, issue)

	case "get_user_status":
		where := new(maximo.Where).Eq("userid", argString(args, "userid"))
		return d.fetch(ctx, tool.Entity, where)

	case "search_users":
		where := searchWhere(tool.Entity, args, "status", "personid")
		if argBool(args, "locked_only") {
			where.EqInt("lockedout", 1)
		}
		return d.search(ctx, tool.Entity, where, argInt(args, "page_size"))

	case "unlock_user_account":
		where := new(maximo.Where).Eq("userid", argString(args, "userid"))
		unlock := map[string]any{
			"status":           "ACTIVE",
			"lockedout":        0,
			"failedlogincount": 0,
		}
		if v := argString(args, "memo"); v != "" {
			unlock["memo"] = v
		}
		return d.twoStepUpdate(ctx, tool.Entity, where, unlock)
	}

	return nil, fmt.Errorf("tool %q has no executor", tool.Name)
}

func (d *Dispatcher) fetch(ctx context.Context, entity maximo.Entity, where *maximo.Where) (json.RawMessage, error) {
	rec, err := d.upstream.Fetch(ctx, entity, where)
	if err != nil {
		return nil, err
	}
	return rec.Data, nil
}

func (d *Dispatcher) search(ctx context.Context, entity maximo.Entity, where *maximo.Where, pageSize int) (json.RawMessage, error) {
	items, count, err := d.upstream.Search(ctx, entity, where, pageSize)
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		Count int             `json:"count"`
		Items json.RawMessage `json:"items"`
	}{Count: count, Items: items})
}

// statusUpdate handles the update_*_status tools: new_status plus an
// optional memo, applied through the two-step fetch-then-patch path.
func (d *Dispatcher) statusUpdate(ctx context.Context, entity maximo.Entity, where *maximo.Where, args map[string]any) (json.RawMessage, error) {
	update := map[string]any{"status": argString(args, "new_status")}
	if v := argString(args, "memo"); v != "" {
		update["memo"] = v
	}
	return d.twoStepUpdate(ctx, entity, where, update)
}

// twoStepUpdate resolves the record's OSLC resource id with a fetch, then
// patches it. Maximo has no addressable-by-business-key update.
func (d *Dispatcher) twoStepUpdate(ctx context.Context, entity maximo.Entity, where *maximo.Where, update map[string]any) (json.RawMessage, error) {
	rec, err := d.upstream.Fetch(ctx, entity, where)
	if err != nil {
		return nil, err
	}
	if rec.ResourceID == "" {
		return nil, fmt.Errorf("cannot determine resource id for %s matching %s", entity, where.String())
	}
	return d.upstream.Update(ctx, entity, rec.ResourceID, update)
}

// searchWhere builds the common search filter: free-text query over the
// entity's query fields plus exact-match filters for the named args.
func searchWhere(entity maximo.Entity, args map[string]any, eqFields ...string) *maximo.Where {
	where := new(maximo.Where)
	if q := argString(args, "query"); q != "" {
		where.AnyLike(maximo.QueryFields(entity), q)
	}
	for _, f := range eqFields {
		eqIfSet(where, args, f)
	}
	return where
}

func eqIfSet(where *maximo.Where, args map[string]any, field string) {
	if v := argString(args, field); v != "" {
		where.Eq(field, v)
	}
}

// payload copies validated args straight into an upstream create body.
func payload(args map[string]any) map[string]any {
	out := make(map[string]any, len(args))
	for k, v := range args {
		out[k] = v
	}
	return out
}

func argString(args map[string]any, name string) string {
	s, _ := args[name].(string)
	return s
}

func argInt(args map[string]any, name string) int {
	n, _ := args[name].(int)
	return n
}

func argBool(args map[string]any, name string) bool {
	b, _ := args[name].(bool)
	return b
}
