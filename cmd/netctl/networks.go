package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/spf13/cobra"
)

// ingestResponse mirrors the server's ingestion result payload.
type ingestResponse struct {
	NetworkID     string `json:"networkId"`
	VersionID     string `json:"versionId"`
	EdgesInserted int    `json:"edgesInserted"`
}

// networkList mirrors the server's network listing payload.
type networkList struct {
	Networks []struct {
		ID        string `json:"id"`
		Name      string `json:"name"`
		CreatedAt string `json:"createdAt"`
	} `json:"networks"`
	NextPageToken string `json:"nextPageToken"`
}

// newNetworksCmd lists the tenant's networks.
func newNetworksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "networks",
		Short: "List networks owned by this API key's tenant",
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := parseOutputFormat(outputFlag)
			if err != nil {
				return err
			}

			body, err := globalClient.doRequest(http.MethodGet, "/api/v1/networks", "", nil)
			if err != nil {
				return err
			}
			var list networkList
			if err := json.Unmarshal(body, &list); err != nil {
				return fmt.Errorf("decoding response: %w", err)
			}

			headers := []string{"ID", "NAME", "CREATED"}
			rows := make([][]string, 0, len(list.Networks))
			for _, n := range list.Networks {
				rows = append(rows, []string{n.ID, n.Name, n.CreatedAt})
			}
			return printOutput(os.Stdout, format, list, headers, rows)
		},
	}
}

// newIngestCmd uploads a GeoJSON snapshot, creating the network on first use.
func newIngestCmd() *cobra.Command {
	var name, file string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Upload a GeoJSON FeatureCollection as a new network version",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpload("/api/v1/networks", name, file)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Network name (required)")
	cmd.Flags().StringVar(&file, "file", "", "Path to GeoJSON file (required)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// newUpdateCmd uploads a new version for an existing network.
func newUpdateCmd() *cobra.Command {
	var name, file string

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Upload a new version for an existing network",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpload("/api/v1/networks/update", name, file)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Network name (required)")
	cmd.Flags().StringVar(&file, "file", "", "Path to GeoJSON file (required)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func runUpload(path, name, file string) error {
	format, err := parseOutputFormat(outputFlag)
	if err != nil {
		return err
	}

	body, err := globalClient.uploadGeoJSON(path, name, file)
	if err != nil {
		return err
	}
	var resp ingestResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}

	headers := []string{"NETWORK", "VERSION", "EDGES"}
	rows := [][]string{{resp.NetworkID, resp.VersionID, fmt.Sprintf("%d", resp.EdgesInserted)}}
	return printOutput(os.Stdout, format, resp, headers, rows)
}

// newEdgesCmd runs a time-travel query and prints the GeoJSON result.
func newEdgesCmd() *cobra.Command {
	var at string

	cmd := &cobra.Command{
		Use:   "edges <network-id>",
		Short: "Fetch a network's edges as GeoJSON at a point in time",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/api/v1/networks/" + url.PathEscape(args[0]) + "/edges"
			if at != "" {
				if _, err := time.Parse(time.RFC3339, at); err != nil {
					return fmt.Errorf("invalid --at, expected RFC3339: %w", err)
				}
				path += "?datetime=" + url.QueryEscape(at)
			}

			body, err := globalClient.doRequest(http.MethodGet, path, "", nil)
			if err != nil {
				return err
			}
			// GeoJSON passes through untouched so it can be piped to files
			// or GIS tooling.
			_, err = os.Stdout.Write(append(body, '\n'))
			return err
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "RFC3339 timestamp to query at (default: now)")
	return cmd
}
