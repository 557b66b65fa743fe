package policy

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	DefaultPackDir  = ".supportbot"
	packFileName    = "specpack.yaml"
	playbookDirName = "playbooks"
)

type Category struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
}

type FieldSpec struct {
	Name      string `yaml:"name"`
	Weight    int    `yaml:"weight,omitempty"`
	Pattern   string `yaml:"pattern,omitempty"`
	MinLength int    `yaml:"min_length,omitempty"`
}

type Checklist struct {
	RequiredFields []FieldSpec `yaml:"required_fields"`
	Threshold      int         `yaml:"threshold"`
}

func (c Checklist) FieldNames() []string {
	names := make([]string, 0, len(c.RequiredFields))
	for _, field := range c.RequiredFields {
		names = append(names, field.Name)
	}
	return names
}

type Route struct {
	Category  string   `yaml:"category"`
	Labels    []string `yaml:"labels,omitempty"`
	Assignees []string `yaml:"assignees,omitempty"`
}

type Routing struct {
	Routes             []Route  `yaml:"routes"`
	EscalationMentions []string `yaml:"escalation_mentions,omitempty"`
}

func (r Routing) RouteFor(category string) *Route {
	for i := range r.Routes {
		if strings.EqualFold(strings.TrimSpace(r.Routes[i].Category), strings.TrimSpace(category)) {
			return &r.Routes[i]
		}
	}
	return nil
}

type Bot struct {
	Username string `yaml:"username"`
	RoundCap int    `yaml:"round_cap"`
	EditCap  int    `yaml:"edit_cap"`
}

// Pack is the policy bundle the bot runs against: triage categories,
// per-category checklists and playbooks, routing rules, and the secret
// patterns the redactor compiles at load time.
type Pack struct {
	Version        int                  `yaml:"version"`
	Bot            Bot                  `yaml:"bot"`
	Categories     []Category           `yaml:"categories"`
	Checklists     map[string]Checklist `yaml:"checklists"`
	Routing        Routing              `yaml:"routing"`
	SecretPatterns []string             `yaml:"secret_patterns"`

	playbooks map[string]string
}

func (p Pack) CategoryNames() []string {
	names := make([]string, 0, len(p.Categories))
	for _, category := range p.Categories {
		names = append(names, category.Name)
	}
	return names
}

func (p Pack) HasCategory(name string) bool {
	for _, category := range p.Categories {
		if strings.EqualFold(category.Name, strings.TrimSpace(name)) {
			return true
		}
	}
	return false
}

func (p Pack) Checklist(category string) (Checklist, bool) {
	checklist, ok := p.Checklists[strings.ToLower(strings.TrimSpace(category))]
	return checklist, ok
}

func (p Pack) Playbook(category string) string {
	return p.playbooks[strings.ToLower(strings.TrimSpace(category))]
}

func Default() Pack {
	pack := Pack{
		Version: 1,
		Bot: Bot{
			Username: "github-actions[bot]",
			RoundCap: 3,
			EditCap:  3,
		},
		Categories: []Category{
			{Name: "bug", Keywords: []string{"error", "exception", "broken", "fails", "crash on", "unexpected"}},
			{Name: "build_failure", Keywords: []string{"build", "compile", "install", "dependency", "make", "npm install"}},
			{Name: "performance", Keywords: []string{"slow", "latency", "timeout", "memory", "cpu", "hangs"}},
			{Name: "question", Keywords: []string{"how do i", "how to", "question", "documentation", "clarify"}},
		},
		Checklists: map[string]Checklist{
			"bug": {
				Threshold: 4,
				RequiredFields: []FieldSpec{
					{Name: "version", Pattern: `\d`},
					{Name: "os"},
					{Name: "error_message", MinLength: 10},
					{Name: "repro_steps", MinLength: 20, Weight: 2},
				},
			},
			"build_failure": {
				Threshold: 3,
				RequiredFields: []FieldSpec{
					{Name: "version", Pattern: `\d`},
					{Name: "os"},
					{Name: "error_message", MinLength: 10, Weight: 2},
				},
			},
			"performance": {
				Threshold: 3,
				RequiredFields: []FieldSpec{
					{Name: "version", Pattern: `\d`},
					{Name: "workload", MinLength: 10},
					{Name: "observed_behavior", MinLength: 10},
					{Name: "expected_behavior"},
				},
			},
			"question": {
				Threshold: 1,
				RequiredFields: []FieldSpec{
					{Name: "topic"},
				},
			},
		},
		Routing: Routing{
			Routes: []Route{
				{Category: "bug", Labels: []string{"bug", "triaged"}},
				{Category: "build_failure", Labels: []string{"build", "triaged"}},
				{Category: "performance", Labels: []string{"performance", "triaged"}},
				{Category: "question", Labels: []string{"question"}},
			},
			EscalationMentions: []string{},
		},
		SecretPatterns: []string{
			`(?i)(token|api[_-]?key|secret)["':\s=]+([A-Za-z0-9_\-]{8,})`,
			`(?i)(password)["':\s=]+(\S{4,})`,
			`ghp_[A-Za-z0-9]{36}`,
			`sk-[A-Za-z0-9]{20,}`,
		},
	}
	pack.playbooks = defaultPlaybooks()
	return pack
}

func defaultPlaybooks() map[string]string {
	return map[string]string{
		"bug": "Reproduce with the reported version before anything else. " +
			"Check the error message against known issues and recent releases.",
		"build_failure": "Verify the toolchain version matches the documented requirements. " +
			"Ask for a clean-checkout build log if the error is truncated.",
		"performance": "Confirm the workload size and compare against the documented baselines. " +
			"Profile before proposing configuration changes.",
		"question": "Point at the relevant documentation section; open a docs issue if none exists.",
	}
}

// Load reads the spec pack from dir (DefaultPackDir when empty). A missing
// directory yields the built-in default pack so the bot can run unconfigured.
func Load(dir string) (Pack, string, error) {
	finalDir := strings.TrimSpace(dir)
	if finalDir == "" {
		finalDir = DefaultPackDir
	}
	packPath := filepath.Join(finalDir, packFileName)
	if _, err := os.Stat(packPath); os.IsNotExist(err) {
		return Default(), finalDir, nil
	}

	b, err := os.ReadFile(packPath)
	if err != nil {
		return Pack{}, finalDir, fmt.Errorf("read spec pack %s: %w", packPath, err)
	}
	var pack Pack
	if err := yaml.Unmarshal(b, &pack); err != nil {
		return Pack{}, finalDir, fmt.Errorf("parse spec pack %s: %w", packPath, err)
	}
	pack.playbooks = loadPlaybooks(filepath.Join(finalDir, playbookDirName))
	if err := Validate(pack); err != nil {
		return Pack{}, finalDir, fmt.Errorf("validate spec pack %s: %w", packPath, err)
	}
	return pack, finalDir, nil
}

func loadPlaybooks(dir string) map[string]string {
	playbooks := map[string]string{}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return playbooks
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		content, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			continue
		}
		category := strings.ToLower(strings.TrimSuffix(entry.Name(), ".md"))
		playbooks[category] = strings.TrimSpace(string(content))
	}
	return playbooks
}

func SaveDefault(dir string) error {
	finalDir := strings.TrimSpace(dir)
	if finalDir == "" {
		finalDir = DefaultPackDir
	}
	pack := Default()
	b, err := yaml.Marshal(pack)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Join(finalDir, playbookDirName), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(finalDir, packFileName), b, 0o644); err != nil {
		return err
	}
	for category, playbook := range pack.playbooks {
		path := filepath.Join(finalDir, playbookDirName, category+".md")
		if err := os.WriteFile(path, []byte(playbook+"\n"), 0o644); err != nil {
			return err
		}
	}
	return nil
}

func Validate(pack Pack) error {
	if pack.Version <= 0 {
		return fmt.Errorf("version must be positive")
	}
	if strings.TrimSpace(pack.Bot.Username) == "" {
		return fmt.Errorf("bot.username cannot be empty")
	}
	if pack.Bot.RoundCap <= 0 {
		return fmt.Errorf("bot.round_cap must be > 0")
	}
	if pack.Bot.EditCap <= 0 {
		return fmt.Errorf("bot.edit_cap must be > 0")
	}
	if len(pack.Categories) == 0 {
		return fmt.Errorf("categories must contain at least one entry")
	}
	for _, category := range pack.Categories {
		if strings.TrimSpace(category.Name) == "" {
			return fmt.Errorf("category.name cannot be empty")
		}
		if _, ok := pack.Checklists[strings.ToLower(category.Name)]; !ok {
			return fmt.Errorf("category %q has no checklist", category.Name)
		}
	}
	for name, checklist := range pack.Checklists {
		if len(checklist.RequiredFields) == 0 {
			return fmt.Errorf("checklist %q has no required fields", name)
		}
		if checklist.Threshold <= 0 {
			return fmt.Errorf("checklist %q threshold must be > 0", name)
		}
		for _, field := range checklist.RequiredFields {
			if strings.TrimSpace(field.Name) == "" {
				return fmt.Errorf("checklist %q has a field with no name", name)
			}
			if field.Pattern != "" {
				if _, err := regexp.Compile(field.Pattern); err != nil {
					return fmt.Errorf("checklist %q field %q pattern: %w", name, field.Name, err)
				}
			}
		}
	}
	for _, pattern := range pack.SecretPatterns {
		if _, err := regexp.Compile(pattern); err != nil {
			return fmt.Errorf("secret pattern %q: %w", pattern, err)
		}
	}
	return nil
}
