// tgxp-bridge - A bridge between Telegram-style chat groups and XMPP-style
// federated rooms.
// Copyright (C) 2026 tgxp-bridge contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package config loads the bridge's INI configuration file.
package config

import (
	"github.com/go-faster/errors"
	"gopkg.in/ini.v1"
)

const defaultActorsPoolSizeLimit = 16

// Telegram holds the [telegram] section.
type Telegram struct {
	Token string
}

// XMPP holds the [xmpp] section.
type XMPP struct {
	Host                string
	Login               string
	Password            string
	ActorsPoolSizeLimit int
	UploadBaseURL       string
}

// General holds the [general] section.
type General struct {
	Key string
}

// Config is the fully validated bridge configuration.
type Config struct {
	Telegram Telegram
	XMPP     XMPP
	General  General
}

// Load reads and validates the INI file at path.
func Load(path string) (*Config, error) {
	file, err := ini.Load(path)
	if err != nil {
		return nil, errors.Wrap(err, "read config file")
	}

	cfg := &Config{
		XMPP: XMPP{ActorsPoolSizeLimit: defaultActorsPoolSizeLimit},
	}

	telegramSection := file.Section("telegram")
	cfg.Telegram.Token = telegramSection.Key("token").String()

	xmppSection := file.Section("xmpp")
	cfg.XMPP.Host = xmppSection.Key("host").String()
	cfg.XMPP.Login = xmppSection.Key("login").String()
	cfg.XMPP.Password = xmppSection.Key("password").String()
	cfg.XMPP.UploadBaseURL = xmppSection.Key("upload_base_url").String()
	if xmppSection.HasKey("actors_pool_size_limit") {
		limit, err := xmppSection.Key("actors_pool_size_limit").Int()
		if err != nil {
			return nil, errors.Wrap(err, "parse xmpp.actors_pool_size_limit")
		}
		cfg.XMPP.ActorsPoolSizeLimit = limit
	}

	generalSection := file.Section("general")
	cfg.General.Key = generalSection.Key("key").String()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that every required field is present. Configuration
// errors are fatal at startup only.
func (c *Config) Validate() error {
	if c.Telegram.Token == "" {
		return errors.New("telegram.token is required")
	}
	if c.XMPP.Host == "" {
		return errors.New("xmpp.host is required")
	}
	if c.XMPP.Login == "" {
		return errors.New("xmpp.login is required")
	}
	if c.XMPP.Password == "" {
		return errors.New("xmpp.password is required")
	}
	if c.XMPP.UploadBaseURL == "" {
		return errors.New("xmpp.upload_base_url is required")
	}
	if c.General.Key == "" {
		return errors.New("general.key is required")
	}
	if c.XMPP.ActorsPoolSizeLimit < 1 {
		return errors.New("xmpp.actors_pool_size_limit must be positive")
	}
	return nil
}
