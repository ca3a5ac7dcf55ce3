package cli

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

// OrderOptions holds flags for the order command.
type OrderOptions struct {
	*RootOptions
	Items []string
	Name  string
	Note  string
}

type orderItem struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

type placeOrderRequest struct {
	Name  string      `json:"name"`
	Note  string      `json:"note,omitempty"`
	Items []orderItem `json:"items"`
}

type placeOrderResponse struct {
	OrderID     int64 `json:"orderId"`
	OrderNumber int64 `json:"orderNumber"`
}

type orderLine struct {
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unitPrice"`
	Subtotal  string `json:"subtotal"`
}

type orderSummary struct {
	ID        int64       `json:"id"`
	Name      string      `json:"name"`
	Note      string      `json:"note"`
	CreatedAt time.Time   `json:"createdAt"`
	Total     string      `json:"total"`
	Items     []orderLine `json:"items"`
}

func NewOrderCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &OrderOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "order",
		Short: "Place an order",
		Long: `Place an order for one or more products.

Each --item is <productId>:<quantity>; the quantity defaults to 1.

Examples:
  cantinactl order --item 5:2 --item 7 --name "Ana"
  cantinactl order --item 3:1 --name "Ana" --note "no sugar"`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOrder(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), opts)
		},
	}

	cmd.Flags().StringArrayVar(&opts.Items, "item", nil, "product and quantity as id:qty (repeatable)")
	cmd.Flags().StringVar(&opts.Name, "name", "", "name called at the counter (defaults to your account name)")
	cmd.Flags().StringVar(&opts.Note, "note", "", "note for the kitchen")
	_ = cmd.MarkFlagRequired("item")

	return cmd
}

// parseItem parses "<productId>[:<quantity>]".
func parseItem(s string) (orderItem, error) {
	idPart, qtyPart, hasQty := strings.Cut(strings.TrimSpace(s), ":")
	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil || id <= 0 {
		return orderItem{}, fmt.Errorf("invalid item %q: product id must be a positive integer", s)
	}
	qty := 1
	if hasQty {
		qty, err = strconv.Atoi(qtyPart)
		if err != nil || qty <= 0 {
			return orderItem{}, fmt.Errorf("invalid item %q: quantity must be a positive integer", s)
		}
	}
	return orderItem{ProductID: id, Quantity: qty}, nil
}

// parseItems merges repeated product ids so the request carries each once.
func parseItems(raw []string) ([]orderItem, error) {
	var items []orderItem
	index := map[int64]int{}
	for _, s := range raw {
		it, err := parseItem(s)
		if err != nil {
			return nil, err
		}
		if i, ok := index[it.ProductID]; ok {
			items[i].Quantity += it.Quantity
			continue
		}
		index[it.ProductID] = len(items)
		items = append(items, it)
	}
	return items, nil
}

func runOrder(ctx context.Context, stdout, stderr io.Writer, opts *OrderOptions) error {
	items, err := parseItems(opts.Items)
	if err != nil {
		return err
	}
	m, err := bootManager(ctx, stderr, opts.RootOptions)
	if err != nil {
		return err
	}
	name := strings.TrimSpace(opts.Name)
	if name == "" {
		name = m.User().Name
	}

	var res placeOrderResponse
	req := placeOrderRequest{Name: name, Note: opts.Note, Items: items}
	if err := m.Do(ctx, http.MethodPost, "/api/orders", req, &res); err != nil {
		return fmt.Errorf("place order: %w", err)
	}
	fmt.Fprintf(stdout, "Order placed, ticket #%d\n", res.OrderNumber)
	return nil
}

func NewOrdersCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "orders",
		Short:         "List your orders",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOrders(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), rootOpts)
		},
	}
}

func runOrders(ctx context.Context, stdout, stderr io.Writer, opts *RootOptions) error {
	m, err := bootManager(ctx, stderr, opts)
	if err != nil {
		return err
	}
	var orders []orderSummary
	path := "/api/orders?userId=" + strconv.FormatInt(m.User().ID, 10)
	if err := m.Do(ctx, http.MethodGet, path, nil, &orders); err != nil {
		return fmt.Errorf("list orders: %w", err)
	}
	if len(orders) == 0 {
		fmt.Fprintln(stdout, "No orders yet")
		return nil
	}

	w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TICKET\tPLACED\tNAME\tITEMS\tTOTAL")
	for _, o := range orders {
		lines := make([]string, 0, len(o.Items))
		for _, it := range o.Items {
			lines = append(lines, fmt.Sprintf("%dx %s", it.Quantity, it.Name))
		}
		fmt.Fprintf(w, "#%d\t%s\t%s\t%s\t%s\n",
			o.ID, o.CreatedAt.Local().Format("2006-01-02 15:04"), o.Name, strings.Join(lines, ", "), o.Total)
	}
	return w.Flush()
}
