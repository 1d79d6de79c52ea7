package setup

import (
	"fmt"
	"io"
	"os"

	"github.com/ehamiter/arkv"
	"github.com/ehamiter/arkv/internal/config"
)

// Wizard drives the interactive setup flows.
type Wizard struct {
	prompter *Prompter
	out      io.Writer
}

// NewWizard creates a wizard using the given prompter. Messages go to out.
func NewWizard(p *Prompter, out io.Writer) *Wizard {
	return &Wizard{prompter: p, out: out}
}

// Run dispatches to first-run setup when no configuration exists, or to the
// management menu otherwise. It returns the configuration in effect after
// the flow, which may be unchanged when the user cancels.
func (w *Wizard) Run() (*config.Config, error) {
	if !config.Exists() {
		return w.runFresh()
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	fmt.Fprintln(w.out, "\nConfiguration already exists.")

	choice, err := w.prompter.Select("What would you like to do?", []string{
		"Add a new destination",
		"Edit an existing destination",
		"Delete a destination",
		"Start fresh (delete all and reconfigure)",
		"Cancel",
	})
	if err != nil {
		return nil, err
	}

	switch choice {
	case 0:
		return w.addDestination(cfg)
	case 1:
		return w.editDestination(cfg)
	case 2:
		return w.deleteDestination(cfg)
	case 3:
		confirm, err := w.prompter.Confirm("This will delete all your existing settings. Are you sure?", false)
		if err != nil {
			return nil, err
		}
		if confirm {
			return w.runFresh()
		}
		fmt.Fprintln(w.out, "Cancelled.")
		return cfg, nil
	default:
		fmt.Fprintln(w.out, "Cancelled.")
		return cfg, nil
	}
}

func (w *Wizard) runFresh() (*config.Config, error) {
	fmt.Fprintln(w.out, "\nWelcome to arkv! Let's get you set up.")

	keyPath, err := w.promptKeyPath()
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(w.out, "\nSSH key configured: %s\n\n", keyPath)

	cfg := &config.Config{SSHKeyPath: keyPath}

	for {
		fmt.Fprintln(w.out, "Setting up a remote destination...")
		dest, err := w.promptDestination()
		if err != nil {
			return nil, err
		}
		cfg.Destinations = append(cfg.Destinations, dest)

		more, err := w.prompter.Confirm("Add another destination?", false)
		if err != nil {
			return nil, err
		}
		if !more {
			break
		}
	}

	if err := config.Save(cfg); err != nil {
		return nil, err
	}
	fmt.Fprintln(w.out, "\nConfiguration saved. You're ready to use arkv.")

	return cfg, nil
}

func (w *Wizard) addDestination(cfg *config.Config) (*config.Config, error) {
	fmt.Fprintln(w.out, "\nAdding a new destination...")

	dest, err := w.promptDestination()
	if err != nil {
		return nil, err
	}
	cfg.Destinations = append(cfg.Destinations, dest)

	if err := config.Save(cfg); err != nil {
		return nil, err
	}
	fmt.Fprintln(w.out, "Destination added.")

	return cfg, nil
}

func (w *Wizard) editDestination(cfg *config.Config) (*config.Config, error) {
	if len(cfg.Destinations) == 0 {
		fmt.Fprintln(w.out, "No destinations configured.")
		return cfg, nil
	}

	idx, err := w.prompter.Select("Select destination to edit", destinationLabels(cfg))
	if err != nil {
		return nil, err
	}

	fmt.Fprintf(w.out, "\nEditing %s...\n", cfg.Destinations[idx].Name)

	dest, err := w.promptDestination()
	if err != nil {
		return nil, err
	}
	cfg.Destinations[idx] = dest

	if err := config.Save(cfg); err != nil {
		return nil, err
	}
	fmt.Fprintln(w.out, "Destination updated.")

	return cfg, nil
}

func (w *Wizard) deleteDestination(cfg *config.Config) (*config.Config, error) {
	if len(cfg.Destinations) == 0 {
		fmt.Fprintln(w.out, "No destinations configured.")
		return cfg, nil
	}

	idx, err := w.prompter.Select("Select destination to delete", destinationLabels(cfg))
	if err != nil {
		return nil, err
	}

	name := cfg.Destinations[idx].Name
	confirm, err := w.prompter.Confirm(fmt.Sprintf("Delete %q?", name), false)
	if err != nil {
		return nil, err
	}
	if !confirm {
		fmt.Fprintln(w.out, "Cancelled.")
		return cfg, nil
	}

	cfg.Destinations = append(cfg.Destinations[:idx], cfg.Destinations[idx+1:]...)

	if err := config.Save(cfg); err != nil {
		return nil, err
	}
	fmt.Fprintf(w.out, "Destination %q deleted.\n", name)

	return cfg, nil
}

func (w *Wizard) promptKeyPath() (string, error) {
	keyPath, err := w.prompter.PromptWithDefault("Path to your SSH private key", config.DefaultKeyPath)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(arkv.ExpandPath(keyPath)); err != nil {
		return "", fmt.Errorf("SSH key not found at %s", keyPath)
	}
	return keyPath, nil
}

func (w *Wizard) promptDestination() (config.Destination, error) {
	var dest config.Destination
	var err error

	if dest.Name, err = w.prompter.PromptRequired("Name for this connection"); err != nil {
		return dest, err
	}
	if dest.Host, err = w.prompter.PromptRequired("Server address (e.g., example.com or 192.168.1.1)"); err != nil {
		return dest, err
	}
	if dest.Port, err = w.prompter.PromptInt("SSH port", config.DefaultPort); err != nil {
		return dest, err
	}
	if dest.Username, err = w.prompter.PromptRequired("Username"); err != nil {
		return dest, err
	}
	if dest.RemotePath, err = w.prompter.PromptRequired("Remote folder path (e.g., /home/user/uploads)"); err != nil {
		return dest, err
	}

	usePassword, err := w.prompter.Confirm("Use password authentication? (otherwise SSH key will be used)", false)
	if err != nil {
		return dest, err
	}
	if usePassword {
		if dest.Password, err = w.prompter.PromptPassword("Password"); err != nil {
			return dest, err
		}
	}

	return dest, nil
}

func destinationLabels(cfg *config.Config) []string {
	labels := make([]string, len(cfg.Destinations))
	for i, d := range cfg.Destinations {
		labels[i] = fmt.Sprintf("%s (%s)", d.Name, d.Host)
	}
	return labels
}
