// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/sigil-dev/wayfinder/internal/config"
	"github.com/sigil-dev/wayfinder/internal/provider"
	"github.com/sigil-dev/wayfinder/internal/secrets"
	wferr "github.com/sigil-dev/wayfinder/pkg/errors"
)

// initHTTPClient is used for provider key validation. Tests replace it.
var initHTTPClient = &http.Client{Timeout: 10 * time.Second}

// skipBootstrapAnnotation marks commands that must not have a default
// config written for them before they run.
const skipBootstrapAnnotation = "wayfinder/skip-bootstrap"

// Keyring entry names the wizard writes under secrets.Service.
const oracleKeyName = "oracle-api-key"

func providerKeyName(p provider.ProviderName) string {
	return string(p) + "-api-key"
}

type initWizardStep int

const (
	stepProvider    initWizardStep = iota // select provider
	stepAPIKey                            // enter provider API key
	stepValidateKey                       // validating key (spinner)
	stepOracleKey                         // enter oracle API key
	stepPlacesURL                         // enter places endpoint
	stepPeopleURL                         // enter people endpoint
	stepDone
	stepError
)

// initResult holds what the wizard collected.
type initResult struct {
	Provider  provider.ProviderName
	APIKey    string
	OracleKey string
	PlacesURL string
	PeopleURL string
}

type (
	validationSuccessMsg struct{}
	validationErrorMsg   struct{ err error }
	configWrittenMsg     struct{ path string }
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99"))
	promptStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	successStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	boxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("62")).Padding(0, 1)
)

var supportedProviders = []provider.ProviderName{
	provider.ProviderAnthropic,
	provider.ProviderOpenAI,
	provider.ProviderGoogle,
	provider.ProviderOpenRouter,
}

// initModel is the bubbletea model for the init wizard.
type initModel struct {
	step          initWizardStep
	providerIdx   int
	apiKeyInput   textinput.Model
	oracleInput   textinput.Model
	placesInput   textinput.Model
	peopleInput   textinput.Model
	spinner       spinner.Model
	result        initResult
	validationErr string
	configPath    string
	secretStore   secrets.Store
	errFinal      error
	skipValidate  bool
	force         bool
}

func newSecretInput(placeholder string) textinput.Model {
	in := textinput.New()
	in.Placeholder = placeholder
	in.EchoMode = textinput.EchoPassword
	in.EchoCharacter = '•'
	return in
}

func newURLInput(placeholder string) textinput.Model {
	in := textinput.New()
	in.Placeholder = placeholder
	in.CharLimit = 2048
	return in
}

func newInitModel(store secrets.Store) initModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return initModel{
		step:        stepProvider,
		apiKeyInput: newSecretInput("paste API key here"),
		oracleInput: newSecretInput("paste oracle API key here"),
		placesInput: newURLInput("https://oracle.example/places"),
		peopleInput: newURLInput("https://oracle.example/people"),
		spinner:     sp,
		secretStore: store,
	}
}

func (m initModel) Init() tea.Cmd {
	return nil
}

func (m initModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case validationSuccessMsg:
		return m.focus(stepOracleKey)

	case validationErrorMsg:
		m.validationErr = msg.err.Error()
		m.step = stepAPIKey
		m.apiKeyInput.Focus()
		return m, nil

	case configWrittenMsg:
		m.step = stepDone
		m.configPath = msg.path
		return m, tea.Quit

	case error:
		m.step = stepError
		m.errFinal = msg
		return m, tea.Quit
	}

	if in := m.input(); in != nil {
		var cmd tea.Cmd
		*in, cmd = in.Update(msg)
		return m, cmd
	}
	return m, nil
}

// input returns the text input for the current step, or nil.
func (m *initModel) input() *textinput.Model {
	switch m.step {
	case stepAPIKey:
		return &m.apiKeyInput
	case stepOracleKey:
		return &m.oracleInput
	case stepPlacesURL:
		return &m.placesInput
	case stepPeopleURL:
		return &m.peopleInput
	}
	return nil
}

// focus moves to step and focuses its input.
func (m initModel) focus(step initWizardStep) (tea.Model, tea.Cmd) {
	m.step = step
	m.validationErr = ""
	if in := m.input(); in != nil {
		in.Focus()
	}
	return m, textinput.Blink
}

func (m initModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.step == stepProvider {
		return m.handleProviderKey(msg)
	}

	in := m.input()
	if in == nil {
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		return m, nil
	}

	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "enter":
		return m.submitInput(strings.TrimSpace(in.Value()))
	}
	var cmd tea.Cmd
	*in, cmd = in.Update(msg)
	return m, cmd
}

func (m initModel) handleProviderKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.providerIdx > 0 {
			m.providerIdx--
		}
	case "down", "j":
		if m.providerIdx < len(supportedProviders)-1 {
			m.providerIdx++
		}
	case "enter":
		m.result.Provider = supportedProviders[m.providerIdx]
		m.apiKeyInput.SetValue("")
		return m.focus(stepAPIKey)
	case "q", "ctrl+c":
		return m, tea.Quit
	}
	return m, nil
}

func (m initModel) submitInput(value string) (tea.Model, tea.Cmd) {
	switch m.step {
	case stepAPIKey:
		if value == "" {
			m.validationErr = "API key must not be empty"
			return m, nil
		}
		m.result.APIKey = value
		m.validationErr = ""
		if m.skipValidate {
			return m.focus(stepOracleKey)
		}
		m.step = stepValidateKey
		return m, tea.Batch(
			m.spinner.Tick,
			validateProviderKeyCmd(m.result.Provider, value),
		)

	case stepOracleKey:
		if value == "" {
			m.validationErr = "oracle API key must not be empty"
			return m, nil
		}
		m.result.OracleKey = value
		return m.focus(stepPlacesURL)

	case stepPlacesURL:
		if err := checkEndpoint(value); err != nil {
			m.validationErr = err.Error()
			return m, nil
		}
		m.result.PlacesURL = value
		return m.focus(stepPeopleURL)

	case stepPeopleURL:
		if err := checkEndpoint(value); err != nil {
			m.validationErr = err.Error()
			return m, nil
		}
		m.result.PeopleURL = value
		m.validationErr = ""
		return m, writeConfigCmd(m.result, m.secretStore, m.force)
	}
	return m, nil
}

func checkEndpoint(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return wferr.Errorf(wferr.CodeCLIInputInvalid, "%q is not an absolute URL", raw)
	}
	return nil
}

func (m initModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("  Wayfinder Setup  ") + "\n\n")

	switch m.step {
	case stepProvider:
		b.WriteString(promptStyle.Render("Step 1/3: Choose the planner's LLM provider") + "\n\n")
		for i, p := range supportedProviders {
			if i == m.providerIdx {
				b.WriteString(selectedStyle.Render("  > "+string(p)) + "\n")
			} else {
				b.WriteString(dimStyle.Render("    "+string(p)) + "\n")
			}
		}
		b.WriteString("\n" + dimStyle.Render("↑/↓ to navigate  enter to select  q to quit"))

	case stepAPIKey:
		m.viewInput(&b, "Step 1/3: "+string(m.result.Provider)+" API key", m.apiKeyInput)

	case stepValidateKey:
		b.WriteString(m.spinner.View() + " Validating " + string(m.result.Provider) + " API key…\n")

	case stepOracleKey:
		m.viewInput(&b, "Step 2/3: Relation oracle API key", m.oracleInput)

	case stepPlacesURL:
		m.viewInput(&b, "Step 3/3: Places endpoint (city → people)", m.placesInput)

	case stepPeopleURL:
		m.viewInput(&b, "Step 3/3: People endpoint (person → cities)", m.peopleInput)

	case stepDone:
		b.WriteString(successStyle.Render("  Setup complete!  ") + "\n\n")
		if m.configPath != "" {
			b.WriteString(dimStyle.Render("Config written to: "+m.configPath) + "\n\n")
		}
		b.WriteString("Run " + promptStyle.Render("wayfinder doctor") + " to verify setup, then " +
			promptStyle.Render("wayfinder search") + " to start.\n")

	case stepError:
		b.WriteString(errorStyle.Render("Setup failed: "+m.errFinal.Error()) + "\n")
	}

	return boxStyle.Render(b.String())
}

func (m initModel) viewInput(b *strings.Builder, title string, in textinput.Model) {
	b.WriteString(promptStyle.Render(title) + "\n\n")
	b.WriteString(in.View() + "\n")
	if m.validationErr != "" {
		b.WriteString("\n" + errorStyle.Render("  "+m.validationErr) + "\n")
	}
	b.WriteString("\n" + dimStyle.Render("enter to continue  ctrl+c to quit"))
}

func validateProviderKeyCmd(p provider.ProviderName, key string) tea.Cmd {
	return func() tea.Msg {
		if err := provider.ValidateKey(context.Background(), initHTTPClient, p, key, ""); err != nil {
			return validationErrorMsg{err: err}
		}
		return validationSuccessMsg{}
	}
}

func writeConfigCmd(result initResult, store secrets.Store, force bool) tea.Cmd {
	return func() tea.Msg {
		path, err := storeSecretsAndWriteConfig(result, store, force)
		if err != nil {
			return err
		}
		return configWrittenMsg{path: path}
	}
}

// GenerateConfigYAML renders a wayfinder.yaml for result. Keys are written
// as keyring:// references; storeSecretsAndWriteConfig stores the values.
func GenerateConfigYAML(result initResult) string {
	providerRef := fmt.Sprintf("keyring://%s/%s", secrets.Service, providerKeyName(result.Provider))
	oracleRef := fmt.Sprintf("keyring://%s/%s", secrets.Service, oracleKeyName)

	var sb strings.Builder
	sb.WriteString("# Wayfinder configuration, generated by wayfinder init\n\n")

	sb.WriteString("search:\n")
	sb.WriteString("  target: BARBARA\n\n")

	sb.WriteString("seed:\n")
	sb.WriteString("  path: barbara.txt\n\n")

	sb.WriteString("oracle:\n")
	sb.WriteString(fmt.Sprintf("  api_key: %q\n", oracleRef))
	sb.WriteString(fmt.Sprintf("  places_url: %q\n", result.PlacesURL))
	sb.WriteString(fmt.Sprintf("  people_url: %q\n\n", result.PeopleURL))

	sb.WriteString("models:\n")
	sb.WriteString(fmt.Sprintf("  planner: %q\n\n", defaultModelForProvider(result.Provider)))

	sb.WriteString("providers:\n")
	sb.WriteString(fmt.Sprintf("  %s:\n", result.Provider))
	sb.WriteString(fmt.Sprintf("    api_key: %q\n\n", providerRef))

	sb.WriteString("submit:\n")
	sb.WriteString("  enabled: false\n\n")

	sb.WriteString("storage:\n")
	sb.WriteString("  backend: sqlite\n")

	return sb.String()
}

// defaultModelForProvider picks a small, cheap planner model per provider.
func defaultModelForProvider(p provider.ProviderName) string {
	switch p {
	case provider.ProviderAnthropic:
		return "anthropic/claude-haiku-4-5"
	case provider.ProviderOpenAI:
		return "openai/gpt-4o-mini"
	case provider.ProviderGoogle:
		return "google/gemini-2.5-flash"
	case provider.ProviderOpenRouter:
		return "openrouter/openai/gpt-4o-mini"
	default:
		return string(p) + "/default"
	}
}

// storeSecretsAndWriteConfig saves both keys to the secret store and writes
// the config to the default path. An existing file is kept unless force is
// set. Secrets already stored are not rolled back when the write fails; a
// later successful run overwrites them.
func storeSecretsAndWriteConfig(result initResult, store secrets.Store, force bool) (string, error) {
	cfgPath, err := config.DefaultConfigPath()
	if err != nil {
		return "", err
	}
	if !force {
		if _, statErr := os.Stat(cfgPath); statErr == nil {
			return "", wferr.Errorf(wferr.CodeConfigAlreadyExists,
				"config file already exists at %s; use --force to overwrite", cfgPath)
		}
	}

	if err := store.Set(secrets.Service, providerKeyName(result.Provider), result.APIKey); err != nil {
		return "", wferr.Errorf(wferr.CodeSecretStoreFailure, "storing %s API key: %w", result.Provider, err)
	}
	if err := store.Set(secrets.Service, oracleKeyName, result.OracleKey); err != nil {
		return "", wferr.Errorf(wferr.CodeSecretStoreFailure, "storing oracle API key: %w", err)
	}

	dir := filepath.Dir(cfgPath)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", wferr.Errorf(wferr.CodeConfigLoadReadFailure, "creating config directory %s: %w", dir, err)
	}
	if err := os.WriteFile(cfgPath, []byte(GenerateConfigYAML(result)), 0o600); err != nil {
		return "", wferr.Errorf(wferr.CodeConfigLoadReadFailure, "writing config to %s: %w", cfgPath, err)
	}
	return cfgPath, nil
}

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Interactive setup wizard",
		Long: `Walk through choosing the planner's LLM provider and pointing wayfinder
at the relation oracle.

API keys are stored in the OS keyring and referenced via keyring:// URIs
in the config file. No secrets are written in plain text.`,
		Annotations: map[string]string{skipBootstrapAnnotation: "true"},
		RunE:        runInit,
	}

	cmd.Flags().Bool("force", false, "overwrite an existing config file")
	cmd.Flags().Bool("no-validate", false, "skip the provider API key check")

	return cmd
}

func runInit(cmd *cobra.Command, _ []string) error {
	f, ok := cmd.InOrStdin().(*os.File)
	if !ok || !isTerminal(f) {
		_, _ = fmt.Fprintln(cmd.ErrOrStderr(),
			"wayfinder init requires an interactive terminal.\n"+
				"To configure wayfinder non-interactively, edit ~/.config/wayfinder/wayfinder.yaml directly.")
		return wferr.New(wferr.CodeCLISetupFailure, "wayfinder init: not an interactive terminal")
	}

	m := newInitModel(secretStoreFactory())
	m.force, _ = cmd.Flags().GetBool("force")
	m.skipValidate, _ = cmd.Flags().GetBool("no-validate")

	finalModel, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	if err != nil {
		return wferr.Errorf(wferr.CodeCLISetupFailure, "init wizard error: %w", err)
	}

	fm, ok := finalModel.(initModel)
	if !ok {
		return wferr.New(wferr.CodeCLISetupFailure, "unexpected model type after wizard")
	}
	if fm.errFinal != nil {
		return wferr.Errorf(wferr.CodeCLISetupFailure, "init failed: %w", fm.errFinal)
	}
	if fm.step == stepDone {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Config written to %s\n", fm.configPath)
	}
	return nil
}

// isTerminal reports whether f is a terminal file descriptor.
func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}
