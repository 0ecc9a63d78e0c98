// Package nsfg loads the National Survey of Family Growth respondent files
// and checks them against a known snapshot.
package nsfg
