// PullPal reviews GitHub pull requests with a language model.
//
// It receives pull_request webhooks, fetches the diff, asks the model for a
// summary and line comments, and posts them back on the pull request.
//
// Usage:
//
//	pullpal serve                              # run the webhook server
//	pullpal user set-token --token <token>     # store a GitHub token
//	pullpal repo connect owner/name --user me  # register a repository
//	pullpal repo list                          # show registrations
//	pullpal review list owner/name             # show recorded reviews
package main

import "os"

func main() {
	os.Exit(run())
}
