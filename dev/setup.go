package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

type template struct {
	name     string
	contents string
}

var templates = []template{
	{
		name: "jagriti_live.json5",
		contents: `// read by the live portal test in lib/scrapers/jagriti, fill in a
// commission and a complainant that are known to have cases.
{
	// base_url: "https://e-jagriti.gov.in",
	state: "KARNATAKA",
	commission: "",
	complainant: "",
}
`,
	},
	{
		name: "telemetry.example.json5",
		contents: `// copy to telemetry.json5 (anywhere above the working directory) to
// export traces and metrics over otlp.
{
	otlp: {
		traces: { http_endpoint: "http://localhost:4318" },
		metrics: { http_endpoint: "http://localhost:4318" },
	},
}
`,
	},
}

func writeTemplate(dir string, file template) error {
	path := filepath.Join(dir, file.name)
	_, err := os.Stat(path)
	if err == nil {
		fmt.Println("config already present at", path)
		return nil
	}

	fmt.Println("writing config template to", path)
	return os.WriteFile(path, []byte(file.contents), 0600)
}

func PrintConfigLocations(dir string) {
	slog.Info("tests that talk to the real portal are skipped until their config under "+dir+" is filled in, run `go test -v` to see which files they read.")
}
