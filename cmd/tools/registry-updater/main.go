// cmd/tools/registry-updater/main.go
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"text/tabwriter"
	"time"

	apperrors "wikimind/internal/common/errors"
	"wikimind/internal/common/validation"
	"wikimind/pkg/registry"
)

func main() {
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)
	listCmd := flag.NewFlagSet("list", flag.ExitOnError)
	updateCmd := flag.NewFlagSet("update", flag.ExitOnError)
	exportCmd := flag.NewFlagSet("export", flag.ExitOnError)

	validatePath := validateCmd.String("path", "", "Registry file to validate (defaults to the embedded registry)")
	listPath := listCmd.String("path", "", "Registry file to list (defaults to the embedded registry)")

	updatePath := updateCmd.String("path", "pkg/registry/activities.json", "Registry file to update")
	idUpdate := updateCmd.String("id", "", "Activity ID to update (e.g. wikimind.topic.resolve)")
	field := updateCmd.String("field", "", "Field to update (status, version, description, timeout, retries)")
	value := updateCmd.String("value", "", "New value for the field")

	exportPath := exportCmd.String("path", "configs/activity-registry.json", "Where to write the embedded registry")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "validate":
		validateCmd.Parse(os.Args[2:])
		reg, err := load(*validatePath)
		if err == nil {
			err = validateRegistry(reg)
		}
		if err != nil {
			fmt.Printf("Registry validation failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Registry validation passed. Found %d activities.\n", len(reg.Activities))

	case "list":
		listCmd.Parse(os.Args[2:])
		reg, err := load(*listPath)
		if err != nil {
			fmt.Printf("Error loading registry: %v\n", err)
			os.Exit(1)
		}
		list(reg)

	case "update":
		updateCmd.Parse(os.Args[2:])
		if *idUpdate == "" || *field == "" || *value == "" {
			fmt.Println("Error: id, field, and value are required for update.")
			updateCmd.Usage()
			os.Exit(1)
		}
		if err := updateActivity(*updatePath, *idUpdate, *field, *value); err != nil {
			fmt.Printf("Error updating activity: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Updated activity %s, field %s to %s\n", *idUpdate, *field, *value)

	case "export":
		exportCmd.Parse(os.Args[2:])
		reg, err := registry.Default()
		if err == nil {
			err = saveRegistry(reg, *exportPath)
		}
		if err != nil {
			fmt.Printf("Error exporting registry: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Wrote %d activities to %s\n", len(reg.Activities), *exportPath)

	case "help":
		fallthrough
	default:
		help()
	}
}

func load(path string) (*registry.ActivityRegistry, error) {
	if path == "" {
		return registry.Default()
	}
	return registry.LoadRegistry(path)
}

// validateRegistry runs the structural checks, compiles every schema and checks that declared
// error codes are ones the workers can throw.
func validateRegistry(reg *registry.ActivityRegistry) error {
	if len(reg.Activities) == 0 {
		return fmt.Errorf("registry contains no activities")
	}
	if err := reg.Validate(); err != nil {
		return err
	}

	known := make(map[string]bool, len(apperrors.BPMNErrorMapping))
	for _, code := range apperrors.BPMNErrorMapping {
		known[code] = true
	}

	for _, a := range reg.Activities {
		if _, err := validation.Compile(a.InputSchema); err != nil {
			return fmt.Errorf("activity %s input: %w", a.ID, err)
		}
		if len(a.OutputSchema) > 0 {
			if _, err := validation.Compile(a.OutputSchema); err != nil {
				return fmt.Errorf("activity %s output: %w", a.ID, err)
			}
		}
		for _, code := range a.ErrorCodes {
			if !known[code] {
				return fmt.Errorf("activity %s declares unknown error code %s", a.ID, code)
			}
		}
	}
	return nil
}

func list(reg *registry.ActivityRegistry) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTASK TYPE\tSTATUS\tTIMEOUT\tRETRIES")
	for _, a := range reg.Activities {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n", a.ID, a.TaskType, a.ImplementationStatus, a.Timeout, a.Retries)
	}
	w.Flush()
}

func updateActivity(path, id, field, value string) error {
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}

	found := false
	for i := range reg.Activities {
		if reg.Activities[i].ID != id {
			continue
		}
		found = true
		switch field {
		case "status":
			reg.Activities[i].ImplementationStatus = value
		case "version":
			reg.Activities[i].Version = value
		case "description":
			reg.Activities[i].Description = value
		case "timeout":
			if _, err := time.ParseDuration(value); err != nil {
				return fmt.Errorf("invalid timeout value: %w", err)
			}
			reg.Activities[i].Timeout = value
		case "retries":
			retries, err := strconv.Atoi(value)
			if err != nil {
				return fmt.Errorf("invalid retries value: %w", err)
			}
			reg.Activities[i].Retries = retries
		default:
			return fmt.Errorf("unknown field: %s", field)
		}
		break
	}

	if !found {
		return fmt.Errorf("activity with ID %s not found", id)
	}

	if err := validateRegistry(reg); err != nil {
		return err
	}
	reg.LastUpdated = time.Now().Format(time.RFC3339)
	return saveRegistry(reg, path)
}

func saveRegistry(reg *registry.ActivityRegistry, path string) error {
	data, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal registry: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write registry file: %w", err)
	}
	return nil
}

func help() {
	fmt.Print(`
Usage: registry-updater <command> [flags]

Commands:
  validate  Validate a registry file or the embedded registry
  list      List registered activities
  update    Update an activity field in a registry file
  export    Write the embedded registry to a file
  help      Show this help message

Examples:
  registry-updater validate
  registry-updater list -path configs/activity-registry.json
  registry-updater update -id wikimind.question.answer -field timeout -value 180s
  registry-updater export -path configs/activity-registry.json

Use 'registry-updater <command> -h' for more information about a command.
`)
}
