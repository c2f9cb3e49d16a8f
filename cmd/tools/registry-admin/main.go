// cmd/tools/registry-admin/main.go
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"poultry-review-engine/internal/models"
	"poultry-review-engine/pkg/registry"
)

var registryPath string

// registryDoc mirrors the registry file for editing. Tracks and programs are
// kept as raw JSON so reviewer edits never rewrite them.
type registryDoc struct {
	Version   string            `json:"version"`
	UpdatedAt time.Time         `json:"updatedAt"`
	Tracks    []json.RawMessage `json:"tracks"`
	Programs  []json.RawMessage `json:"programs,omitempty"`
	Reviewers []models.Reviewer `json:"reviewers,omitempty"`
}

func main() {
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)
	listCmd := flag.NewFlagSet("list", flag.ExitOnError)
	addCmd := flag.NewFlagSet("add-reviewer", flag.ExitOnError)
	updateCmd := flag.NewFlagSet("update-reviewer", flag.ExitOnError)

	validateCmd.StringVar(&registryPath, "path", "configs/registry.json", "Path to registry file")
	listCmd.StringVar(&registryPath, "path", "configs/registry.json", "Path to registry file")
	addCmd.StringVar(&registryPath, "path", "configs/registry.json", "Path to registry file")
	updateCmd.StringVar(&registryPath, "path", "configs/registry.json", "Path to registry file")

	// Add command flags
	idAdd := addCmd.String("id", "", "Reviewer ID (e.g., const-kiambaa-01)")
	name := addCmd.String("name", "", "Reviewer full name")
	email := addCmd.String("email", "", "Reviewer email address")
	phone := addCmd.String("phone", "", "Reviewer phone number")
	role := addCmd.String("role", "", "Reviewer role (constituency_officer, regional_officer, national_officer, program_admin)")

	// Update command flags
	idUpdate := updateCmd.String("id", "", "Reviewer ID to update")
	field := updateCmd.String("field", "", "Field to update (name, email, phone, role, active)")
	value := updateCmd.String("value", "", "New value for the field")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "validate":
		validateCmd.Parse(os.Args[2:])
		reg, err := registry.Load(registryPath)
		if err != nil {
			fmt.Printf("Registry validation failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Registry validation passed. Found %d tracks, %d reviewers.\n",
			len(reg.Tracks()), len(reg.Reviewers()))

	case "list":
		listCmd.Parse(os.Args[2:])
		reg, err := registry.Load(registryPath)
		if err != nil {
			fmt.Printf("Error loading registry: %v\n", err)
			os.Exit(1)
		}
		listRegistry(reg)

	case "add-reviewer":
		addCmd.Parse(os.Args[2:])
		if *idAdd == "" || *role == "" {
			fmt.Println("Error: id and role are required for add-reviewer.")
			addCmd.Usage()
			os.Exit(1)
		}
		reviewer := models.Reviewer{
			ID:     *idAdd,
			Name:   *name,
			Email:  *email,
			Phone:  *phone,
			Role:   models.ReviewerRole(*role),
			Active: true,
		}
		if err := addReviewer(reviewer); err != nil {
			fmt.Printf("Error adding reviewer: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Added reviewer: %s\n", *idAdd)

	case "update-reviewer":
		updateCmd.Parse(os.Args[2:])
		if *idUpdate == "" || *field == "" || *value == "" {
			fmt.Println("Error: id, field, and value are required for update-reviewer.")
			updateCmd.Usage()
			os.Exit(1)
		}
		if err := updateReviewer(*idUpdate, *field, *value); err != nil {
			fmt.Printf("Error updating reviewer: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Updated reviewer %s, field %s to %s\n", *idUpdate, *field, *value)

	case "help":
		fallthrough
	default:
		help()
	}
}

func listRegistry(reg *registry.Registry) {
	fmt.Printf("Registry version %s (updated %s)\n\n", reg.Version, reg.UpdatedAt.Format("2006-01-02"))

	fmt.Printf("Tracks (%d):\n", len(reg.Tracks()))
	for _, track := range reg.Tracks() {
		stages := make([]string, len(track.Stages))
		for i, s := range track.Stages {
			stages[i] = string(s)
		}
		fmt.Printf("  %-30s %-20s prefix=%s stages=%s\n",
			track.ID, track.Kind, track.NumberPrefix, strings.Join(stages, ">"))
		if track.RequiresEligibility {
			fmt.Printf("  %-30s eligibility pre-check against program %s\n", "", track.ProgramID)
		}
	}

	fmt.Printf("\nReviewers (%d):\n", len(reg.Reviewers()))
	for _, reviewer := range reg.Reviewers() {
		status := "active"
		if !reviewer.Active {
			status = "inactive"
		}
		fmt.Printf("  %-30s %-22s %-8s %s\n", reviewer.ID, reviewer.Role, status, reviewer.Name)
	}
}

func addReviewer(reviewer models.Reviewer) error {
	doc, err := loadDoc(registryPath)
	if err != nil {
		return err
	}

	// Check if reviewer already exists
	for _, existing := range doc.Reviewers {
		if existing.ID == reviewer.ID {
			return fmt.Errorf("reviewer with ID %s already exists", reviewer.ID)
		}
	}

	doc.Reviewers = append(doc.Reviewers, reviewer)
	doc.UpdatedAt = time.Now().UTC()

	return saveDoc(doc, registryPath)
}

func updateReviewer(id, field, value string) error {
	doc, err := loadDoc(registryPath)
	if err != nil {
		return err
	}

	found := false
	for i := range doc.Reviewers {
		if doc.Reviewers[i].ID == id {
			found = true
			switch field {
			case "name":
				doc.Reviewers[i].Name = value
			case "email":
				doc.Reviewers[i].Email = value
			case "phone":
				doc.Reviewers[i].Phone = value
			case "role":
				doc.Reviewers[i].Role = models.ReviewerRole(value)
			case "active":
				active, err := strconv.ParseBool(value)
				if err != nil {
					return fmt.Errorf("invalid active value: %w", err)
				}
				doc.Reviewers[i].Active = active
			default:
				return fmt.Errorf("unknown field: %s", field)
			}
			break
		}
	}

	if !found {
		return fmt.Errorf("reviewer with ID %s not found", id)
	}

	doc.UpdatedAt = time.Now().UTC()
	return saveDoc(doc, registryPath)
}

func loadDoc(path string) (*registryDoc, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read registry: %w", err)
	}

	var doc registryDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse registry: %w", err)
	}
	return &doc, nil
}

// saveDoc writes the document back after running it through the real parser,
// so a bad edit never lands on disk.
func saveDoc(doc *registryDoc, path string) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal registry: %w", err)
	}

	if _, err := registry.Parse(data); err != nil {
		return fmt.Errorf("edited registry is invalid: %w", err)
	}

	// Create directory if it doesn't exist
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write registry file: %w", err)
	}

	return nil
}

func help() {
	fmt.Println(`
Usage: registry-admin <command> [flags]

Commands:
  validate         Validate the registry file
  list             List tracks and reviewers
  add-reviewer     Add a reviewer to the registry
  update-reviewer  Update an existing reviewer's field
  help             Show this help message

Examples:
  registry-admin validate -path configs/registry.json
  registry-admin list
  registry-admin add-reviewer -id const-kiambaa-01 -name "Janet Wambui" -role constituency_officer -email janet@agriculture.go.ke
  registry-admin update-reviewer -id const-kiambaa-01 -field active -value false

Use 'registry-admin <command> -h' for more information about a command.
`)
}
