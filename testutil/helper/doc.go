// Package helper provides Given/Fixture helpers and test doubles for the loans and sqlengine tests.
package helper
