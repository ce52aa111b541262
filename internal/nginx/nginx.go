// Package nginx renders the reverse-proxy site configuration and knows where
// it lives on a Debian-style host.
package nginx

import (
	"fmt"
	"strings"
	"text/template"
)

// Commands the deployer issues on the remote host around config changes.
const (
	// TestCommand validates the full nginx configuration syntax.
	TestCommand = "sudo nginx -t"
	// ReloadCommand applies a changed configuration without dropping the
	// service.
	ReloadCommand = "sudo systemctl reload nginx"
)

const siteTemplate = `server {
    listen 80;
    server_name {{.ServerName}};

    location / {
        proxy_pass http://127.0.0.1:{{.AppPort}};
        proxy_set_header Host $host;
        proxy_set_header X-Real-IP $remote_addr;
        proxy_set_header X-Forwarded-For $proxy_add_x_forwarded_for;
        proxy_set_header X-Forwarded-Proto $scheme;
    }
}
`

var siteTmpl = template.Must(template.New("site").Parse(siteTemplate))

// Render produces the site configuration forwarding port 80 for serverName
// to the application port on localhost.
func Render(serverName, appPort string) (string, error) {
	serverName = strings.TrimSpace(serverName)
	appPort = strings.TrimSpace(appPort)
	if serverName == "" {
		return "", fmt.Errorf("server name cannot be empty")
	}
	if appPort == "" {
		return "", fmt.Errorf("application port cannot be empty")
	}
	var b strings.Builder
	err := siteTmpl.Execute(&b, struct {
		ServerName string
		AppPort    string
	}{ServerName: serverName, AppPort: appPort})
	if err != nil {
		return "", fmt.Errorf("render site config: %w", err)
	}
	return b.String(), nil
}

// AvailablePath is the site file under sites-available for the application.
func AvailablePath(app string) string {
	return fmt.Sprintf("/etc/nginx/sites-available/%s.conf", app)
}

// EnabledPath is the symlink under sites-enabled for the application.
func EnabledPath(app string) string {
	return fmt.Sprintf("/etc/nginx/sites-enabled/%s.conf", app)
}
