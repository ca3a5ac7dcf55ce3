package cli

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// MenuOptions holds flags for the menu command.
type MenuOptions struct {
	*RootOptions
	Category   string
	Query      string
	Categories bool
}

type menuCategory struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type menuProduct struct {
	ID       int64         `json:"id"`
	Name     string        `json:"name"`
	Price    string        `json:"price"`
	Stock    int           `json:"stock"`
	Category *menuCategory `json:"category"`
}

func NewMenuCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MenuOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "menu",
		Short: "List products on the menu",
		Long: `List the menu. No sign-in is needed.

Examples:
  cantinactl menu
  cantinactl menu --category bebidas
  cantinactl menu --q suco
  cantinactl menu --categories`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMenu(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.Category, "category", "", "category slug")
	cmd.Flags().StringVar(&opts.Query, "q", "", "search text")
	cmd.Flags().BoolVar(&opts.Categories, "categories", false, "list categories instead of products")

	return cmd
}

func runMenu(ctx context.Context, stdout, stderr io.Writer, opts *MenuOptions) error {
	m, err := opts.newManager(stderr)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	if opts.Categories {
		var cats []menuCategory
		if err := m.Public(ctx, http.MethodGet, "/api/categories", nil, &cats); err != nil {
			return fmt.Errorf("list categories: %w", err)
		}
		fmt.Fprintln(w, "SLUG\tNAME")
		for _, c := range cats {
			fmt.Fprintf(w, "%s\t%s\n", c.Slug, c.Name)
		}
		return w.Flush()
	}

	q := url.Values{}
	if opts.Category != "" {
		q.Set("category", opts.Category)
	}
	if opts.Query != "" {
		q.Set("q", opts.Query)
	}
	path := "/api/products"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var products []menuProduct
	if err := m.Public(ctx, http.MethodGet, path, nil, &products); err != nil {
		return fmt.Errorf("list products: %w", err)
	}
	if len(products) == 0 {
		fmt.Fprintln(stdout, "No products found")
		return nil
	}
	fmt.Fprintln(w, "ID\tNAME\tCATEGORY\tPRICE\tSTOCK")
	for _, p := range products {
		cat := "-"
		if p.Category != nil {
			cat = p.Category.Slug
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\n", p.ID, p.Name, cat, p.Price, p.Stock)
	}
	return w.Flush()
}
