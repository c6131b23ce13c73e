package oras

import (
	"context"
	"errors"
	"net"
	"strings"

	"oras.land/oras-go/v2/registry/remote/auth"
	"oras.land/oras-go/v2/registry/remote/credentials"
)

var errReadOnlyStore = errors.New("oci: credential store is read-only")

// dockerHubHosts are the names Docker Hub credentials may be stored under.
var dockerHubHosts = []string{
	"https://index.docker.io/v1/",
	"index.docker.io",
	"registry-1.docker.io",
	"docker.io",
}

// DockerCredentials returns the credential store configured in
// ~/.docker/config.json, including credential helpers.
func DockerCredentials() (credentials.Store, error) {
	store, err := credentials.NewStoreFromDocker(credentials.StoreOptions{})
	if err != nil {
		return nil, err
	}
	return hubStore{store}, nil
}

// StaticCredentials returns a store holding a username and password for
// one registry host.
func StaticCredentials(registry, username, password string) credentials.Store {
	return fixedStore{
		host: hostOf(registry),
		cred: auth.Credential{Username: username, Password: password},
	}
}

// StaticToken returns a store holding a bearer token for one registry host.
func StaticToken(registry, token string) credentials.Store {
	return fixedStore{
		host: hostOf(registry),
		cred: auth.Credential{AccessToken: token},
	}
}

type fixedStore struct {
	host string
	cred auth.Credential
}

func (s fixedStore) Get(_ context.Context, server string) (auth.Credential, error) {
	host := hostOf(server)
	if host == s.host || (isDockerHub(host) && isDockerHub(s.host)) {
		return s.cred, nil
	}
	return auth.EmptyCredential, nil
}

func (fixedStore) Put(context.Context, string, auth.Credential) error { return errReadOnlyStore }

func (fixedStore) Delete(context.Context, string) error { return errReadOnlyStore }

// hubStore retries Docker Hub lookups under the hub's other host names.
type hubStore struct {
	credentials.Store
}

func (s hubStore) Get(ctx context.Context, server string) (auth.Credential, error) {
	cred, err := s.Store.Get(ctx, server)
	if (err == nil && !emptyCredential(cred)) || !isDockerHub(hostOf(server)) {
		return cred, err
	}
	for _, alt := range dockerHubHosts {
		if alt == server {
			continue
		}
		if c, altErr := s.Store.Get(ctx, alt); altErr == nil && !emptyCredential(c) {
			return c, nil
		}
	}
	return cred, err
}

func isDockerHub(host string) bool {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	switch host {
	case "docker.io", "index.docker.io", "registry-1.docker.io":
		return true
	}
	return false
}

// hostOf strips the scheme and path from a server address, keeping the port.
func hostOf(server string) string {
	server = strings.TrimPrefix(server, "https://")
	server = strings.TrimPrefix(server, "http://")
	host, _, _ := strings.Cut(server, "/")
	return host
}

func emptyCredential(c auth.Credential) bool {
	return c.Username == "" && c.Password == "" && c.AccessToken == "" && c.RefreshToken == ""
}
