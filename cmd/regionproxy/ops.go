package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dropDatabas3/regionproxy/internal/region"
	"github.com/dropDatabas3/regionproxy/internal/store"
	"github.com/dropDatabas3/regionproxy/internal/util"
)

func newMappingCmd(g *globalFlags) *cobra.Command {
	mapping := &cobra.Command{Use: "mapping", Short: "Consultar mappings de clients registrados"}
	mapping.AddCommand(&cobra.Command{
		Use:   "get <proxy_client_id>",
		Short: "Imprime el mapping (secrets enmascarados)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			kv, err := openKV(cfg)
			if err != nil {
				return err
			}
			defer kv.Close()

			m, err := store.NewClientMappings(kv).Get(cmdContext(cmd), args[0])
			if err != nil {
				return err
			}
			if m == nil {
				return fmt.Errorf("mapping %q no encontrado", args[0])
			}
			return printJSON(cmd, redactMapping(*m))
		},
	})
	return mapping
}

func redactMapping(m store.ClientMapping) store.ClientMapping {
	m.USClientSecret = util.MaskSecret(m.USClientSecret)
	m.EUClientSecret = util.MaskSecret(m.EUClientSecret)
	return m
}

func newRegionCmd(g *globalFlags) *cobra.Command {
	regionCmd := &cobra.Command{Use: "region", Short: "Consultar o forzar selecciones de región"}

	regionCmd.AddCommand(&cobra.Command{
		Use:   "get <state|client_id>",
		Short: "Muestra la región seleccionada para la key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			kv, err := openKV(cfg)
			if err != nil {
				return err
			}
			defer kv.Close()

			r, ok, err := store.NewRegionSelections(kv).Get(cmdContext(cmd), args[0])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("sin selección para %q", args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), r)
			return nil
		},
	})

	regionCmd.AddCommand(&cobra.Command{
		Use:   "set <state|client_id> <us|eu>",
		Short: "Fuerza la selección de región (TTL de 1h)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, ok := region.Lookup(args[1])
			if !ok {
				return fmt.Errorf("región inválida %q (us|eu)", args[1])
			}
			cfg, err := g.load()
			if err != nil {
				return err
			}
			kv, err := openKV(cfg)
			if err != nil {
				return err
			}
			defer kv.Close()

			if err := store.NewRegionSelections(kv).Put(cmdContext(cmd), args[0], r); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s (ttl %s)\n", args[0], r, store.SelectionTTL)
			return nil
		},
	})
	return regionCmd
}

func newConfigCmd(g *globalFlags) *cobra.Command {
	cfgCmd := &cobra.Command{Use: "config", Short: "Inspeccionar la configuración efectiva"}
	cfgCmd.AddCommand(&cobra.Command{
		Use:   "print",
		Short: "Imprime la config efectiva (password de redis enmascarado)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			out := *cfg
			out.Cache.Redis.Password = util.MaskSecret(out.Cache.Redis.Password)
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			defer enc.Close()
			return enc.Encode(out)
		},
	})
	return cfgCmd
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
