package cli

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/aidventure/packlist/internal/model"
	"github.com/aidventure/packlist/internal/state"
	"github.com/aidventure/packlist/internal/tui"
	"github.com/aidventure/packlist/internal/ui"
)

// Options tune output behavior from root flags.
type Options struct {
	Group bool // show items grouped by category
}

// App carries the wired-up dependencies. Construction happens in main so
// tests and the TUI share the same manager.
type App struct {
	Manager *state.Manager
	Log     *zap.Logger
}

// Run dispatches subcommands and returns an exit code (0 ok, 1 error, 2 usage).
func Run(args []string, app *App, opt Options) int {
	if len(args) == 0 {
		PrintHelp()
		return 2
	}
	cmd, a := args[0], args[1:]

	switch cmd {
	case "help", "-h", "--help":
		PrintHelp()
		return 0

	case "ls":
		return doList(app)

	case "create":
		if len(a) == 0 {
			ui.Fail("usage: packlist create <name...>")
			return 2
		}
		return doCreate(app, strings.Join(a, " "))

	case "rm":
		if len(a) != 1 {
			ui.Fail("usage: packlist rm <list>")
			return 2
		}
		return doRemove(app, a[0])

	case "rename":
		if len(a) < 2 {
			ui.Fail("usage: packlist rename <list> <name...>")
			return 2
		}
		return doRename(app, a[0], strings.Join(a[1:], " "))

	case "show":
		if len(a) != 1 {
			ui.Fail("usage: packlist show <list>")
			return 2
		}
		return doShow(app, a[0], opt)

	case "add":
		if len(a) < 2 {
			ui.Fail("usage: packlist add <list> [-category c] [-qty n] [-priority p] [-notes s] <name...>")
			return 2
		}
		return doAddItem(app, a[0], a[1:])

	case "done":
		if len(a) != 2 {
			ui.Fail("usage: packlist done <list> <item>")
			return 2
		}
		return doToggle(app, a[0], a[1])

	case "rmi":
		if len(a) != 2 {
			ui.Fail("usage: packlist rmi <list> <item>")
			return 2
		}
		return doRemoveItem(app, a[0], a[1])

	case "all":
		if len(a) < 1 {
			ui.Fail("usage: packlist all <list> [-reset]")
			return 2
		}
		return doAll(app, a[0], a[1:])

	case "categories":
		return doCategories()

	case "tui":
		listRef := ""
		if len(a) > 0 {
			listRef = a[0]
		}
		return doTUI(app, listRef)
	}

	ui.Fail("unknown subcommand: " + cmd)
	fmt.Fprintln(os.Stderr)
	PrintHelp()
	return 2
}

func PrintHelp() {
	fmt.Printf(`packlist - adventure race gear checklists

Usage:
  packlist <subcommand> [args]

Subcommands:
  ls                        List checklists
  create <name...>          Create a new checklist
  rm <list>                 Delete checklist at 1-based index
  rename <list> <name...>   Rename a checklist
  show <list>               Show items (use root -group to group by category)
  add <list> [flags] <name...>
                            Add an item; flags before the name:
                            -category c  -qty n  -priority high|normal|optional  -notes s
  done <list> <item>        Toggle an item's completed state
  rmi <list> <item>         Remove an item
  all <list> [-reset]       Mark every item complete (or reset with -reset)
  categories                Print the stock gear categories
  tui [list]                Interactive mode

Examples:
  packlist create "Expedition Race"
  packlist add 1 -category Lighting -qty 2 Headlamp
  packlist done 1 3
`)
}

// -------------- subcommand impls ----------------

func doList(app *App) int {
	lists, code := loadAll(app)
	if code != 0 {
		return code
	}

	header := ui.C(ui.Current().Title, "Checklists")
	lines := []string{header, ""}
	if len(lists) == 0 {
		lines = append(lines, ui.C(ui.Current().Muted, "no checklists"))
	}
	for i, c := range lists {
		done, pending := c.Stats()
		lines = append(lines, fmt.Sprintf("%s %s",
			ui.C(dimStyle, fmt.Sprintf("%2d.", i+1)),
			ui.C(ui.Current().Accent, c.Name)))
		lines = append(lines, "    "+ui.C(ui.Current().Muted,
			ui.ProgressBar(done, done+pending, 24))+
			ui.C(ui.Current().Muted, fmt.Sprintf("  %d items", len(c.Items))))
	}
	lines = append(lines, "")
	lines = append(lines, ui.C(ui.Current().Muted, "Tip: create with `packlist create \"Race name\"`"))
	ui.Panel(lines)
	return 0
}

func doCreate(app *App, name string) int {
	if code := load(app); code != 0 {
		return code
	}
	if strings.TrimSpace(name) == "" {
		ui.Fail("create: empty name")
		return 2
	}
	if _, err := app.Manager.CreateChecklist(context.Background(), name); err != nil {
		ui.Fail("create: " + err.Error())
		return 1
	}
	ui.OK("created")
	return 0
}

func doRemove(app *App, listRef string) int {
	c, code := resolveChecklist(app, listRef)
	if code != 0 {
		return code
	}
	if err := app.Manager.DeleteChecklist(context.Background(), c.ID); err != nil {
		ui.Fail("rm: " + err.Error())
		return 1
	}
	ui.OK("removed " + c.Name)
	return 0
}

func doRename(app *App, listRef, name string) int {
	c, code := resolveChecklist(app, listRef)
	if code != 0 {
		return code
	}
	c.Name = strings.TrimSpace(name)
	if c.Name == "" {
		ui.Fail("rename: empty name")
		return 2
	}
	if err := app.Manager.UpdateChecklist(context.Background(), c); err != nil {
		ui.Fail("rename: " + err.Error())
		return 1
	}
	ui.OK("renamed")
	return 0
}

func doShow(app *App, listRef string, opt Options) int {
	c, code := resolveChecklist(app, listRef)
	if code != 0 {
		return code
	}

	done, pending := c.Stats()
	header := fmt.Sprintf("%s  %s %d  %s %d  %s %d",
		ui.C(ui.Current().Title, c.Name),
		ui.C(ui.Current().Success, ui.Current().SymDone), done,
		ui.C(ui.Current().Pending, ui.Current().SymUnchecked), pending,
		ui.C(ui.Current().Accent, "Total"), len(c.Items),
	)

	var lines []string
	lines = append(lines, header)
	lines = append(lines, ui.C(ui.Current().Muted, ui.ProgressBar(done, done+pending, 28)))
	lines = append(lines, "")

	if opt.Group {
		lines = append(lines, groupedLines(c)...)
	} else {
		lines = append(lines, itemLines(c.Items)...)
	}
	ui.Panel(lines)
	return 0
}

func doAddItem(app *App, listRef string, rest []string) int {
	c, code := resolveChecklist(app, listRef)
	if code != 0 {
		return code
	}

	fs := flag.NewFlagSet("add", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	category := fs.String("category", "", "item category")
	qty := fs.Int("qty", 0, "quantity")
	priority := fs.String("priority", "", "high, normal, or optional")
	notes := fs.String("notes", "", "free-text notes")
	if err := fs.Parse(rest); err != nil {
		return 2
	}
	name := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if name == "" {
		ui.Fail("add: empty item name")
		return 2
	}

	item := model.Item{
		Name:     name,
		Category: *category,
		Notes:    *notes,
		Quantity: *qty,
		Priority: model.Priority(*priority),
	}
	if err := app.Manager.AddItem(context.Background(), c.ID, item); err != nil {
		ui.Fail("add: " + err.Error())
		return 1
	}
	ui.OK("added " + name)
	return 0
}

func doToggle(app *App, listRef, itemRef string) int {
	c, it, code := resolveItem(app, listRef, itemRef)
	if code != 0 {
		return code
	}
	if err := app.Manager.ToggleItemComplete(context.Background(), c.ID, it.ID); err != nil {
		ui.Fail("done: " + err.Error())
		return 1
	}
	ui.OK("toggled " + it.Name)
	return 0
}

func doRemoveItem(app *App, listRef, itemRef string) int {
	c, it, code := resolveItem(app, listRef, itemRef)
	if code != 0 {
		return code
	}
	if err := app.Manager.DeleteItem(context.Background(), c.ID, it.ID); err != nil {
		ui.Fail("rmi: " + err.Error())
		return 1
	}
	ui.OK("removed " + it.Name)
	return 0
}

func doAll(app *App, listRef string, rest []string) int {
	c, code := resolveChecklist(app, listRef)
	if code != 0 {
		return code
	}
	fs := flag.NewFlagSet("all", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	resetAll := fs.Bool("reset", false, "mark everything pending instead")
	if err := fs.Parse(rest); err != nil {
		return 2
	}
	if err := app.Manager.SetAllCompleted(context.Background(), c.ID, !*resetAll); err != nil {
		ui.Fail("all: " + err.Error())
		return 1
	}
	if *resetAll {
		ui.OK("reset all items")
	} else {
		ui.OK("marked all complete")
	}
	return 0
}

func doCategories() int {
	lines := []string{ui.C(ui.Current().Title, "Categories"), ""}
	for _, cat := range model.DefaultCategories {
		lines = append(lines, ui.C(ui.Current().Category, "• ")+cat)
	}
	ui.Panel(lines)
	return 0
}

func doTUI(app *App, listRef string) int {
	id := ""
	if listRef != "" {
		c, code := resolveChecklist(app, listRef)
		if code != 0 {
			return code
		}
		id = c.ID
	} else if code := load(app); code != 0 {
		return code
	}
	if err := tui.Run(app.Manager, id); err != nil {
		ui.Fail("tui: " + err.Error())
		return 1
	}
	return 0
}

// -------------- lookup helpers ----------------

const dimStyle = "\033[2m"

func load(app *App) int {
	app.Manager.LoadChecklists(context.Background())
	if msg := app.Manager.Err(); msg != "" {
		ui.Fail("load: " + msg)
		return 1
	}
	return 0
}

// loadAll loads and returns checklists in a stable display order
// (oldest first). Stored order is a set; the CLI needs stable indexes.
func loadAll(app *App) ([]model.Checklist, int) {
	if code := load(app); code != 0 {
		return nil, code
	}
	lists := app.Manager.Checklists()
	sort.Slice(lists, func(i, j int) bool {
		if !lists[i].CreatedAt.Equal(lists[j].CreatedAt) {
			return lists[i].CreatedAt.Before(lists[j].CreatedAt)
		}
		return lists[i].Name < lists[j].Name
	})
	return lists, 0
}

func resolveChecklist(app *App, ref string) (model.Checklist, int) {
	lists, code := loadAll(app)
	if code != 0 {
		return model.Checklist{}, code
	}
	n, err := strconv.Atoi(ref)
	if err != nil {
		ui.Fail("not a number: " + ref)
		return model.Checklist{}, 2
	}
	if n < 1 || n > len(lists) {
		ui.Fail(fmt.Sprintf("index out of range: have %d, got %d", len(lists), n))
		ui.Hint("Hint: run `packlist ls` to see valid indexes")
		return model.Checklist{}, 2
	}
	return lists[n-1], 0
}

func resolveItem(app *App, listRef, itemRef string) (model.Checklist, model.Item, int) {
	c, code := resolveChecklist(app, listRef)
	if code != 0 {
		return model.Checklist{}, model.Item{}, code
	}
	n, err := strconv.Atoi(itemRef)
	if err != nil {
		ui.Fail("not a number: " + itemRef)
		return model.Checklist{}, model.Item{}, 2
	}
	if n < 1 || n > len(c.Items) {
		ui.Fail(fmt.Sprintf("item index out of range: have %d, got %d", len(c.Items), n))
		ui.Hint("Hint: run `packlist show " + listRef + "` to see valid indexes")
		return model.Checklist{}, model.Item{}, 2
	}
	return c, c.Items[n-1], 0
}

// -------------- rendering helpers --------------

// itemLines renders items with their 1-based position in the checklist's
// slice, so indexes match what done/rmi expect even inside groups.
func itemLines(items []model.Item) []string {
	if len(items) == 0 {
		return []string{ui.C(ui.Current().Muted, "no items")}
	}
	out := make([]string, 0, len(items))
	for i, it := range items {
		out = append(out, itemLine(i+1, it))
	}
	return out
}

func itemLine(idx int, it model.Item) string {
	box := ui.Current().BoxUnchecked
	color := ui.Current().Muted
	if it.Completed {
		box, color = ui.Current().BoxChecked, ui.Current().Success
	}
	name := it.Name
	if len(name) > 60 {
		name = name[:57] + "..."
	}
	line := fmt.Sprintf("%s %s %s",
		ui.C(dimStyle, fmt.Sprintf("%2d.", idx)), ui.C(color, box), name)
	if it.Quantity > 1 {
		line += ui.C(ui.Current().Muted, fmt.Sprintf(" ×%d", it.Quantity))
	}
	if badge := ui.PriorityBadge(it.Priority); badge != "" {
		line += " " + badge
	}
	return line
}

// groupedLines renders items under category headings, keeping each item's
// checklist-wide index.
func groupedLines(c model.Checklist) []string {
	if len(c.Items) == 0 {
		return []string{ui.C(ui.Current().Muted, "no items")}
	}

	type entry struct {
		idx  int
		item model.Item
	}
	groups := map[string][]entry{}
	var order []string
	for i, it := range c.Items {
		cat := it.Category
		if cat == "" {
			cat = "Uncategorized"
		}
		if _, ok := groups[cat]; !ok {
			order = append(order, cat)
		}
		groups[cat] = append(groups[cat], entry{idx: i + 1, item: it})
	}

	var lines []string
	for gi, cat := range order {
		if gi > 0 {
			lines = append(lines, "")
		}
		lines = append(lines, ui.C(ui.Current().Category, cat))
		for _, e := range groups[cat] {
			lines = append(lines, itemLine(e.idx, e.item))
		}
	}
	return lines
}
