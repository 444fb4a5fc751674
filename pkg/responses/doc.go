// Package responses implements the server side of the wizard: it bootstraps
// sessions, decides the next root question and accepts final submissions.
package responses
