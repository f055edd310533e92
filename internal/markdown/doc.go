// Package markdown renders provider answers to HTML with goldmark.
package markdown
