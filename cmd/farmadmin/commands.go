package main

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"bigharvest.farm/internal/persistence/archive"
	"bigharvest.farm/internal/persistence/journal"
	"bigharvest.farm/internal/persistence/sqlitestore"
	"bigharvest.farm/internal/sim/farm"
	"bigharvest.farm/internal/sim/logic/leveling"
)

var (
	titleColor = color.New(color.FgCyan, color.Bold)
	okColor    = color.New(color.FgGreen)
	failColor  = color.New(color.FgRed)
	infoColor  = color.New(color.FgYellow)
)

func newProfilesCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "profiles",
		Short: "List stored profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			gw, closeFn, err := o.gateway()
			if err != nil {
				return err
			}
			defer closeFn()
			profiles, err := gw.Profiles()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(profiles) == 0 {
				infoColor.Fprintln(out, "no profiles")
				return nil
			}
			_, tune, _ := o.catalogs()
			table := tablewriter.NewTable(out,
				tablewriter.WithHeader([]string{"Profile", "Money", "XP", "Level", "Buildings"}),
			)
			for _, p := range profiles {
				st, err := gw.Load(p)
				if err != nil {
					_ = table.Append([]string{p, "?", "?", "?", "?"})
					continue
				}
				_ = table.Append([]string{
					p,
					strconv.FormatInt(st.Money, 10),
					strconv.FormatInt(st.XP, 10),
					strconv.Itoa(leveling.Level(st.XP, tune.Leveling)),
					strconv.Itoa(st.BuildingCount()),
				})
			}
			return table.Render()
		},
	}
}

func newShowCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "show <profile>",
		Short: "Summarize one profile's farm",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			gw, closeFn, err := o.gateway()
			if err != nil {
				return err
			}
			defer closeFn()
			_, tune, _ := o.catalogs()
			st, err := gw.Load(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			titleColor.Fprintf(out, "Profile %s\n", args[0])
			printSummary(cmd, st, leveling.For(st.XP, tune.Leveling))
			printInventory(cmd, st)
			printQuests(cmd, st)
			printOrders(cmd, st)
			return nil
		},
	}
}

func printSummary(cmd *cobra.Command, st *farm.State, lv leveling.Info) {
	var crops, buildings, plowed int
	for _, row := range st.Tiles {
		for _, t := range row {
			switch {
			case t.Crop != nil:
				crops++
			case t.Building != nil:
				buildings++
			case t.Plowed:
				plowed++
			}
		}
	}
	table := tablewriter.NewTable(cmd.OutOrStdout(), tablewriter.WithHeader([]string{"Field", "Value"}))
	rows := [][]string{
		{"money", strconv.FormatInt(st.Money, 10)},
		{"level", fmt.Sprintf("%d (%d/%d xp)", lv.Level, lv.CurrentLevelXP, lv.NextLevelXP)},
		{"energy", fmt.Sprintf("%.1f/%d", st.Energy, st.MaxEnergy)},
		{"season", st.Season},
		{"weather", st.Weather},
		{"tools", fmt.Sprintf("hoe %d, can %d", st.Tools.HoeDurability, st.Tools.WateringCanDurability)},
		{"capacity", strconv.Itoa(st.InventoryCapacity)},
		{"grid", fmt.Sprintf("%dx%d: %d crops, %d buildings, %d plowed", st.Width(), st.Height(), crops, buildings, plowed)},
		{"last active", time.UnixMilli(st.LastActiveTimestamp).UTC().Format(time.RFC3339)},
	}
	for _, r := range rows {
		_ = table.Append(r)
	}
	_ = table.Render()
}

func printInventory(cmd *cobra.Command, st *farm.State) {
	ids := make([]string, 0, len(st.Inventory))
	for id, n := range st.Inventory {
		if n > 0 {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if len(ids) == 0 {
		return
	}
	table := tablewriter.NewTable(cmd.OutOrStdout(), tablewriter.WithHeader([]string{"Item", "Count", "Market"}))
	for _, id := range ids {
		market := "-"
		if m, ok := st.Market.Multipliers[id]; ok {
			market = strconv.FormatFloat(m, 'f', 2, 64)
		}
		_ = table.Append([]string{id, strconv.Itoa(st.Inventory[id]), market})
	}
	_ = table.Render()
}

func printQuests(cmd *cobra.Command, st *farm.State) {
	if len(st.Quests) == 0 {
		return
	}
	table := tablewriter.NewTable(cmd.OutOrStdout(), tablewriter.WithHeader([]string{"Quest", "Progress", "Status"}))
	for _, q := range st.Quests {
		status := "open"
		switch {
		case q.RewardClaimed:
			status = okColor.Sprint("claimed")
		case q.Completed:
			status = infoColor.Sprint("complete")
		}
		_ = table.Append([]string{q.ID, strconv.Itoa(q.Progress), status})
	}
	_ = table.Render()
}

func printOrders(cmd *cobra.Command, st *farm.State) {
	if len(st.Orders) == 0 {
		return
	}
	table := tablewriter.NewTable(cmd.OutOrStdout(), tablewriter.WithHeader([]string{"Order", "Expires", "Status"}))
	for _, o := range st.Orders {
		status := "open"
		switch {
		case o.Completed:
			status = okColor.Sprint("fulfilled")
		case st.LastActiveTimestamp >= o.ExpiresAt:
			status = failColor.Sprint("expired")
		}
		_ = table.Append([]string{o.ID, time.UnixMilli(o.ExpiresAt).UTC().Format(time.RFC3339), status})
	}
	_ = table.Render()
}

func newJournalCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal <profile>",
		Short: "Print a profile's decoded journal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := journal.ReadDir(journal.Dir(o.dataDir, args[0]))
			if err != nil {
				return err
			}
			if o.journalLimit > 0 && len(entries) > o.journalLimit {
				entries = entries[len(entries)-o.journalLimit:]
			}
			table := tablewriter.NewTable(cmd.OutOrStdout(),
				tablewriter.WithHeader([]string{"Time", "Kind", "Action", "Result", "Events", "Message"}),
			)
			for _, e := range entries {
				_ = table.Append([]string{
					time.UnixMilli(e.Time).UTC().Format("2006-01-02 15:04:05"),
					e.Kind,
					e.Action,
					result(e.Kind, e.OK, e.Code),
					strconv.Itoa(len(e.Events)),
					e.Message,
				})
			}
			return table.Render()
		},
	}
	cmd.Flags().IntVarP(&o.journalLimit, "limit", "n", 0, "show only the newest n entries")
	return cmd
}

func newActionsCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "actions <profile>",
		Short: "Query the sqlite action index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := sqlitestore.Open(o.db())
			if err != nil {
				return err
			}
			defer db.Close()
			rows, err := db.Actions(args[0], o.actionsLimit)
			if err != nil {
				return err
			}
			table := tablewriter.NewTable(cmd.OutOrStdout(),
				tablewriter.WithHeader([]string{"Time", "Action", "Result", "Message"}),
			)
			for _, r := range rows {
				_ = table.Append([]string{
					time.UnixMilli(r.Time).UTC().Format("2006-01-02 15:04:05"),
					r.Action,
					result(r.Kind, r.OK, r.Code),
					r.Message,
				})
			}
			return table.Render()
		},
	}
	cmd.Flags().IntVarP(&o.actionsLimit, "limit", "n", 50, "maximum rows")
	return cmd
}

func newResetsCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "resets <profile>",
		Short: "List archived documents replaced by resets",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			metas, err := archive.List(filepath.Join(o.dataDir, "archive"), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(metas) == 0 {
				infoColor.Fprintln(out, "no resets")
				return nil
			}
			table := tablewriter.NewTable(out, tablewriter.WithHeader([]string{"Archived", "File", "Money", "XP", "Bytes"}))
			for _, m := range metas {
				_ = table.Append([]string{m.CreatedAt, m.Archive, strconv.FormatInt(m.Money, 10), strconv.FormatInt(m.XP, 10), strconv.Itoa(m.Bytes)})
			}
			return table.Render()
		},
	}
}

func newCatalogCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "Show catalog digests and definitions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cats, _, err := o.catalogs()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			digests := tablewriter.NewTable(out, tablewriter.WithHeader([]string{"Catalog", "Digest"}))
			for _, r := range [][]string{
				{"crops", cats.Crops.Digest},
				{"buildings", cats.Buildings.Digest},
				{"items", cats.Items.Digest},
				{"quests", cats.Quests.Digest},
				{"orders", cats.Orders.Digest},
				{"seasons", cats.Seasons.Digest},
			} {
				_ = digests.Append(r)
			}
			if err := digests.Render(); err != nil {
				return err
			}

			titleColor.Fprintln(out, "Crops")
			crops := tablewriter.NewTable(out, tablewriter.WithHeader([]string{"ID", "Grow", "Seed", "Sell", "Level", "Seasons"}))
			for _, id := range cats.Crops.Order {
				c := cats.Crops.ByID[id]
				seasons := "all"
				if len(c.Seasons) > 0 {
					seasons = fmt.Sprint(c.Seasons)
				}
				_ = crops.Append([]string{c.ID, (time.Duration(c.GrowTimeMs) * time.Millisecond).String(), strconv.FormatInt(c.SeedCost, 10), strconv.FormatInt(c.SellValue, 10), strconv.Itoa(c.MinLevel), seasons})
			}
			if err := crops.Render(); err != nil {
				return err
			}

			titleColor.Fprintln(out, "Buildings")
			buildings := tablewriter.NewTable(out, tablewriter.WithHeader([]string{"ID", "Cost", "Cycle", "Product", "Value", "Level", "Inputs"}))
			for _, id := range cats.Buildings.Order {
				b := cats.Buildings.ByID[id]
				inputs := "-"
				if len(b.Inputs) > 0 {
					inputs = ""
					for i, in := range b.InputIDs() {
						if i > 0 {
							inputs += ", "
						}
						inputs += fmt.Sprintf("%dx %s", b.Inputs[in], in)
					}
				}
				_ = buildings.Append([]string{b.ID, strconv.FormatInt(b.BuildCost, 10), (time.Duration(b.ProductionTimeMs) * time.Millisecond).String(), b.Product, strconv.FormatInt(b.ProductValue, 10), strconv.Itoa(b.MinLevel), inputs})
			}
			if err := buildings.Render(); err != nil {
				return err
			}

			titleColor.Fprintln(out, "Orders")
			orders := tablewriter.NewTable(out, tablewriter.WithHeader([]string{"ID", "Title", "Items", "Reward", "XP", "Window"}))
			for _, def := range cats.Orders.Defs {
				items := ""
				for i, id := range def.ItemIDs() {
					if i > 0 {
						items += ", "
					}
					items += fmt.Sprintf("%dx %s", def.Items[id], id)
				}
				_ = orders.Append([]string{def.ID, def.Title, items, strconv.FormatInt(def.RewardMoney, 10), strconv.FormatInt(def.RewardXP, 10), (time.Duration(def.DurationMs) * time.Millisecond).String()})
			}
			return orders.Render()
		},
	}
}

func result(kind string, ok bool, code string) string {
	if kind != journal.KindAct {
		return "-"
	}
	if ok {
		return okColor.Sprint("ok")
	}
	return failColor.Sprint(code)
}
