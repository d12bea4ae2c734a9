package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"sftpgate/internal/common/pprint"
	"sftpgate/internal/service"

	"github.com/go-faster/errors"
	"github.com/spf13/cobra"
)

func (c *Cmd) Status(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	client := &http.Client{Timeout: 5 * time.Second}

	var health struct {
		Status        string `json:"status"`
		Version       string `json:"version"`
		UptimeSeconds int64  `json:"uptime_seconds"`
	}
	if err := getData(ctx, client, c.ApiAddr+"/health", &health); err != nil {
		fmt.Println(pprint.Error("Cannot reach %s: %v", c.ApiAddr, err))
		return err
	}

	var status service.StatusResult
	if err := getData(ctx, client, c.ApiAddr+"/sftp/status", &status); err != nil {
		fmt.Println(pprint.Error("Status query failed: %v", err))
		return err
	}

	fmt.Println(pprint.Success("sftpgate is %s", health.Status))

	pairs := [][2]string{
		{"Version", health.Version},
		{"Uptime", (time.Duration(health.UptimeSeconds) * time.Second).String()},
		{"SFTP enabled", strconv.FormatBool(status.Enabled)},
	}
	if status.Enabled {
		pairs = append(pairs, [2]string{"Expires at", status.ExpiresAt})
	}
	fmt.Println(pprint.KeyValue(pairs))

	if !status.Enabled {
		fmt.Println(pprint.Info("Toggle on with a POST to %s/sftp/toggle", c.ApiAddr))
		return nil
	}

	var creds service.CredentialsResult
	if err := getData(ctx, client, c.ApiAddr+"/sftp/credentials", &creds); err != nil {
		fmt.Println(pprint.Warn("Credentials query failed: %v", err))
		return nil
	}

	addr := fmt.Sprintf("%s:%d", creds.BindAddrs[0], creds.Port)
	fmt.Println(pprint.Table(
		[]string{"Username", "Password", "Address", "Root"},
		[][]string{{creds.Username, creds.Password, addr, creds.RootDir}},
	))
	return nil
}

// getData fetches url and unwraps the {"data": ...} envelope into out.
// Non-200 replies surface their {"message": ...} text as the error.
func getData(ctx context.Context, client *http.Client, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	res, err := client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return err
	}

	if res.StatusCode != http.StatusOK {
		var fail struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(body, &fail) == nil && fail.Message != "" {
			return errors.New(fail.Message)
		}
		return errors.Errorf("unexpected status %d", res.StatusCode)
	}

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return errors.Wrap(err, "decode response")
	}
	return json.Unmarshal(envelope.Data, out)
}
