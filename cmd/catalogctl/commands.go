package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/Skotchmaster/catalog_admin/pkg/client"
)

func subFlags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func oneID(args []string) (string, []string, error) {
	if len(args) == 0 || args[0] == "" {
		return "", nil, errors.New("product id required")
	}
	return args[0], args[1:], nil
}

func (a *app) signup(ctx context.Context, args []string) error {
	fs := subFlags("signup")
	name := fs.String("name", "", "display name")
	email := fs.String("email", "", "email")
	if err := fs.Parse(args); err != nil {
		return err
	}
	pw, err := promptPassword(a.out)
	if err != nil {
		return err
	}

	u, err := a.client.Signup(ctx, *name, *email, pw)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "registered %s <%s>\n", u.Name, u.Email)
	return nil
}

func (a *app) login(ctx context.Context, args []string) error {
	fs := subFlags("login")
	email := fs.String("email", "", "email")
	if err := fs.Parse(args); err != nil {
		return err
	}
	pw, err := promptPassword(a.out)
	if err != nil {
		return err
	}

	u, err := a.client.Login(ctx, *email, pw)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "signed in as %s <%s>\n", u.Name, u.Email)
	return nil
}

func (a *app) logout() error {
	if err := a.client.Logout(); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "signed out")
	return nil
}

func (a *app) whoami() error {
	u, ok := a.client.Session().User()
	if !ok || !a.client.Session().Authenticated() {
		return client.ErrUnauthorized
	}
	fmt.Fprintf(a.out, "%s <%s> id=%s\n", u.Name, u.Email, u.ID)
	return nil
}

func (a *app) list(ctx context.Context) error {
	items, err := a.client.ListProducts(ctx)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tCATEGORY\tPRICE\tIN STOCK")
	for _, p := range items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.2f\t%t\n", p.ID, p.Title, p.Category, p.Price, p.InStock)
	}
	return tw.Flush()
}

func (a *app) printProduct(p *client.Product) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(p)
}

func (a *app) get(ctx context.Context, args []string) error {
	id, _, err := oneID(args)
	if err != nil {
		return err
	}
	p, err := a.client.GetProduct(ctx, id)
	if err != nil {
		return err
	}
	return a.printProduct(p)
}

// productFlags binds the editable product fields and reports which ones
// were set on the command line.
type productFlags struct {
	fs          *flag.FlagSet
	title       string
	description string
	price       float64
	category    string
	image       string
	inStock     bool
}

func newProductFlags(name string) *productFlags {
	pf := &productFlags{fs: subFlags(name)}
	pf.fs.StringVar(&pf.title, "title", "", "title")
	pf.fs.StringVar(&pf.description, "description", "", "description")
	pf.fs.Float64Var(&pf.price, "price", 0, "price")
	pf.fs.StringVar(&pf.category, "category", "", "category")
	pf.fs.StringVar(&pf.image, "image", "", "image url")
	pf.fs.BoolVar(&pf.inStock, "in-stock", true, "in stock")
	return pf
}

func (pf *productFlags) set() map[string]bool {
	seen := map[string]bool{}
	pf.fs.Visit(func(f *flag.Flag) { seen[f.Name] = true })
	return seen
}

func (a *app) create(ctx context.Context, args []string) error {
	pf := newProductFlags("create")
	if err := pf.fs.Parse(args); err != nil {
		return err
	}
	seen := pf.set()

	np := client.NewProduct{
		Title:       pf.title,
		Description: pf.description,
		Category:    pf.category,
		Image:       pf.image,
	}
	if seen["price"] {
		np.Price = &pf.price
	}
	if seen["in-stock"] {
		np.InStock = &pf.inStock
	}

	p, err := a.client.CreateProduct(ctx, np)
	if err != nil {
		return err
	}
	return a.printProduct(p)
}

func (a *app) update(ctx context.Context, args []string) error {
	id, rest, err := oneID(args)
	if err != nil {
		return err
	}
	pf := newProductFlags("update")
	if err := pf.fs.Parse(rest); err != nil {
		return err
	}
	seen := pf.set()
	if len(seen) == 0 {
		return errors.New("nothing to update")
	}

	var ch client.ProductChanges
	if seen["title"] {
		ch.Title = &pf.title
	}
	if seen["description"] {
		ch.Description = &pf.description
	}
	if seen["price"] {
		ch.Price = &pf.price
	}
	if seen["category"] {
		ch.Category = &pf.category
	}
	if seen["image"] {
		ch.Image = &pf.image
	}
	if seen["in-stock"] {
		ch.InStock = &pf.inStock
	}

	p, err := a.client.UpdateProduct(ctx, id, ch)
	if err != nil {
		return err
	}
	return a.printProduct(p)
}

func (a *app) delete(ctx context.Context, args []string) error {
	id, _, err := oneID(args)
	if err != nil {
		return err
	}
	if err := a.client.DeleteProduct(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "deleted %s\n", strconv.Quote(id))
	return nil
}
