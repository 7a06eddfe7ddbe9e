package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "auth":
		handleAuth(args)
	case "plan":
		handlePlan(args)
	case "product":
		handleProduct(args)
	case "order":
		handleOrder(args)
	case "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func handleAuth(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: storefront auth <login|logout|who>")
		return
	}

	switch args[0] {
	case "login":
		loginUser(args[1:])
	case "logout":
		logoutUser()
	case "who":
		whoAmI()
	default:
		fmt.Printf("unknown auth command: %s\n", args[0])
	}
}

func handlePlan(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: storefront plan <list|create>")
		return
	}

	switch args[0] {
	case "list":
		listPlans()
	case "create":
		createPlan(args[1:])
	default:
		fmt.Printf("unknown plan command: %s\n", args[0])
	}
}

func handleProduct(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: storefront product <list>")
		return
	}

	switch args[0] {
	case "list":
		listProducts(args[1:])
	default:
		fmt.Printf("unknown product command: %s\n", args[0])
	}
}

func handleOrder(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: storefront order <list|status>")
		return
	}

	switch args[0] {
	case "list":
		listOrders(args[1:])
	case "status":
		updateOrderStatus(args[1:])
	default:
		fmt.Printf("unknown order command: %s\n", args[0])
	}
}

// Auth commands
func loginUser(args []string) {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	email := fs.String("email", "", "user email")
	password := fs.String("password", "", "password")

	fs.Parse(args)

	if *email == "" || *password == "" {
		fmt.Println("Error: email and password are required")
		fs.PrintDefaults()
		return
	}

	payload := map[string]string{"email": *email, "password": *password}
	data, _ := json.Marshal(payload)
	resp, err := http.Post(getAPIURL()+"/auth/login", "application/json", bytes.NewReader(data))
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer resp.Body.Close()

	var result map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&result)
	if resp.StatusCode == 200 {
		if token, ok := result["token"].(string); ok {
			saveToken(token)
			fmt.Printf("✓ Logged in as: %s\n", *email)
		}
		if required, ok := result["subscription_required"].(bool); ok && required {
			fmt.Println("! Store has no active subscription")
		}
	} else {
		fmt.Printf("✗ Login failed: %v\n", result)
	}
}

func logoutUser() {
	os.Remove(tokenFile())
	fmt.Println("✓ Logged out")
}

func whoAmI() {
	token := loadToken()
	if token == "" {
		fmt.Println("Not logged in")
		return
	}
	fmt.Printf("✓ Logged in (token: %s...)\n", token[:20])
}

// Plan commands
func listPlans() {
	resp, err := http.Get(getAPIURL() + "/plans")
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer resp.Body.Close()

	var plans []map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&plans)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tTYPE\tINTERVAL\tPRICE_CENTS")
	for _, p := range plans {
		fmt.Fprintf(w, "%v\t%v\t%v\t%v\t%v\n", p["id"], p["name"], p["type"], p["interval"], p["priceCents"])
	}
	w.Flush()
}

func createPlan(args []string) {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	name := fs.String("name", "", "plan name")
	planType := fs.String("type", "BASIC", "plan type (FREE|BASIC|PRO|ENTERPRISE)")
	interval := fs.String("interval", "MONTHLY", "billing interval (MONTHLY|YEARLY)")
	price := fs.Int64("price", 0, "price in cents")
	maxProducts := fs.Int("max-products", -1, "product quota (-1 unlimited)")
	maxOrders := fs.Int("max-orders", -1, "orders-per-period quota (-1 unlimited)")
	maxStorage := fs.Int("max-storage", -1, "storage quota in MB (-1 unlimited)")

	fs.Parse(args)

	if *name == "" {
		fmt.Println("Error: name is required")
		fs.PrintDefaults()
		return
	}

	payload := map[string]interface{}{
		"name":       *name,
		"type":       strings.ToUpper(*planType),
		"interval":   strings.ToUpper(*interval),
		"priceCents": *price,
		"isActive":   true,
		"features": map[string]interface{}{
			"maxProducts": *maxProducts,
			"maxOrders":   *maxOrders,
			"maxStorage":  *maxStorage,
		},
	}
	data, _ := json.Marshal(payload)

	req, _ := http.NewRequest("POST", getAPIURL()+"/admin/plans", bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	addAuthHeader(req)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer resp.Body.Close()

	var result map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&result)
	if resp.StatusCode == 201 {
		fmt.Printf("✓ Plan created: %v\n", result["id"])
	} else {
		fmt.Printf("✗ Plan creation failed: %v\n", result)
	}
}

// Product commands
func listProducts(args []string) {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	tenant := fs.String("tenant", "", "store ID to resolve the tenant")
	fs.Parse(args)

	req, _ := http.NewRequest("GET", getAPIURL()+"/products", nil)
	if *tenant != "" {
		req.Header.Set("X-Tenant-ID", *tenant)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer resp.Body.Close()

	var products []map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&products)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tTYPE\tPRICE_CENTS\tAVAILABLE")
	for _, p := range products {
		fmt.Fprintf(w, "%v\t%v\t%v\t%v\t%v\n", p["id"], p["name"], p["type"], p["priceCents"], p["isAvailable"])
	}
	w.Flush()
}

// Order commands
func listOrders(args []string) {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	tenant := fs.String("tenant", "", "store ID to resolve the tenant")
	fs.Parse(args)

	req, _ := http.NewRequest("GET", getAPIURL()+"/orders", nil)
	if *tenant != "" {
		req.Header.Set("X-Tenant-ID", *tenant)
	}
	addAuthHeader(req)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer resp.Body.Close()

	var orders []map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&orders)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tTOTAL_CENTS\tCREATED")
	for _, o := range orders {
		fmt.Fprintf(w, "%v\t%v\t%v\t%v\n", o["id"], o["status"], o["totalCents"], o["createdAt"])
	}
	w.Flush()
}

func updateOrderStatus(args []string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	tenant := fs.String("tenant", "", "store ID to resolve the tenant")
	orderID := fs.String("order", "", "order ID")
	status := fs.String("to", "", "target status (SHIPPED|READY|DELIVERED|CANCELED)")
	fs.Parse(args)

	if *orderID == "" || *status == "" {
		fmt.Println("Error: order and to are required")
		fs.PrintDefaults()
		return
	}

	payload := map[string]string{"status": strings.ToUpper(*status)}
	data, _ := json.Marshal(payload)

	req, _ := http.NewRequest("PATCH", getAPIURL()+"/orders/"+*orderID+"/status", bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	if *tenant != "" {
		req.Header.Set("X-Tenant-ID", *tenant)
	}
	addAuthHeader(req)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer resp.Body.Close()

	var result map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&result)
	if resp.StatusCode == 200 {
		fmt.Printf("✓ Order %v -> %v\n", result["id"], result["status"])
	} else {
		fmt.Printf("✗ Status update failed: %v\n", result)
	}
}

// Helper functions
func getAPIURL() string {
	if url := os.Getenv("STOREFRONT_API"); url != "" {
		return url
	}
	return "http://localhost:8080/api"
}

func tokenFile() string {
	home, _ := os.UserHomeDir()
	return home + "/.storefront/token"
}

func saveToken(token string) error {
	home, _ := os.UserHomeDir()
	os.MkdirAll(home+"/.storefront", 0700)
	return os.WriteFile(tokenFile(), []byte(token), 0600)
}

func loadToken() string {
	data, _ := os.ReadFile(tokenFile())
	return string(data)
}

func addAuthHeader(req *http.Request) {
	token := loadToken()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(token))
	}
}

func printUsage() {
	fmt.Print(`Storefront CLI

Usage:
  storefront <command> [options]

Commands:
  auth     Authentication (login, logout, who)
  plan     Plan catalog (list, create) - create requires admin access
  product  Catalog operations (list)
  order    Order operations (list, status)
  help     Show this help message

Environment Variables:
  STOREFRONT_API    API endpoint (default: http://localhost:8080/api)

Examples:
  storefront auth login -email admin@example.com -password pass
  storefront plan list
  storefront plan create -name Pro -type PRO -price 2900 -max-products 500
  storefront product list -tenant <store-id>
  storefront order status -tenant <store-id> -order <order-id> -to SHIPPED
`)
}
