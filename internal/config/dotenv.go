package config

import "github.com/joho/godotenv"

// LoadDotEnv reads .env files into the environment. Variables already set
// win over the file. A missing file is returned as an error the caller may
// ignore.
func LoadDotEnv(paths ...string) error {
	return godotenv.Load(paths...)
}
