package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"github.com/valterpcjria-cloud/doi-smart/internal/config"
	"github.com/valterpcjria-cloud/doi-smart/internal/domain"
	"github.com/valterpcjria-cloud/doi-smart/internal/store"
)

type demoRecord struct {
	rec     domain.Record
	status  domain.Status
	receipt string
	errMsg  string
}

func main() {
	configPath := flag.String("config", os.Getenv("DOI_CONFIG"), "optional YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal(err)
	}
	if cfg.Database.Driver != "postgres" {
		log.Fatalf("seeder needs the postgres driver, got %q", cfg.Database.Driver)
	}

	ctx := context.Background()
	db, err := store.NewStore(cfg.Database.Source)
	if err != nil {
		log.Fatalf("Unable to connect to database: %v\n", err)
	}
	defer db.Close()

	log.Println("--- Seeding Database ---")

	if err := db.EnsureSchema(ctx); err != nil {
		log.Fatal(err)
	}

	var count int
	if err := db.Db.QueryRow(ctx, "SELECT COUNT(*) FROM records").Scan(&count); err != nil {
		log.Fatal(err)
	}
	if count > 0 {
		log.Printf("Database already has %d records. Skipping.", count)
		return
	}

	for _, d := range demoRecords() {
		id, err := db.Create(ctx, d.rec)
		if err != nil {
			log.Fatalf("Insert failed: %v", err)
		}
		if d.status != domain.StatusReady {
			if err := db.UpdateStatus(ctx, id, d.status, d.receipt, d.errMsg); err != nil {
				log.Fatalf("Status update for %s failed: %v", id, err)
			}
		}
		log.Printf("Seeded %s (%s)", id, d.status)
	}

	certs := db.Certificates()
	for _, c := range demoCertificates() {
		if _, err := certs.Create(ctx, c); err != nil {
			log.Fatalf("Certificate insert failed: %v", err)
		}
	}
	log.Println("Successfully seeded demo records and certificates.")
}

func demoRecords() []demoRecord {
	return []demoRecord{
		{
			rec: domain.Record{
				Date:            "2026-01-15",
				Competence:      "01/2026",
				PropertyAddress: "Av. Paulista, 1000, Apto 12 - São Paulo/SP",
				RegistryNumber:  "123.456",
				Value:           decimal.NewFromInt(850000),
				OperationType:   "Compra e Venda",
				PaymentMethod:   "VISTA",
				Parties: []domain.Party{
					{Name: "João da Silva", TaxID: "123.456.789-00", Role: domain.RoleSeller},
					{Name: "Maria Oliveira", TaxID: "987.654.321-11", Role: domain.RoleBuyer},
				},
			},
			status:  domain.StatusTransmitted,
			receipt: "20260115100000.123987",
		},
		{
			rec: domain.Record{
				Date:            "2026-01-20",
				Competence:      "01/2026",
				PropertyAddress: "Rua das Flores, 45, Casa 2 - Campinas/SP",
				RegistryNumber:  "98.765",
				Value:           decimal.NewFromInt(420000),
				OperationType:   "Compra e Venda",
				PaymentMethod:   "PRAZO",
				Parties: []domain.Party{
					{Name: "Pedro Santos", TaxID: "111.222.333-44", Role: domain.RoleSeller},
					{Name: "Construtora ABC Ltda", TaxID: "12.345.678/0001-99", Role: domain.RoleBuyer},
				},
			},
			status: domain.StatusReady,
		},
		{
			rec: domain.Record{
				Date:            "2026-01-22",
				Competence:      "01/2026",
				PropertyAddress: "Alameda Santos, 500, Sala 101 - São Paulo/SP",
				RegistryNumber:  "45.123",
				Value:           decimal.NewFromInt(1200000),
				OperationType:   "Doação",
				PaymentMethod:   "VISTA",
				Parties: []domain.Party{
					{Name: "Carlos Ferreira", TaxID: "555.444.333-22", Role: domain.RoleSeller},
					{Name: "Joana Dark", TaxID: domain.InvalidTaxIDSentinel, Role: domain.RoleBuyer},
				},
			},
			status: domain.StatusError,
			errMsg: domain.CodeInvalidTaxID,
		},
	}
}

func demoCertificates() []domain.Certificate {
	return []domain.Certificate{
		{Owner: "Cartório do 1º Ofício", Type: domain.CertificateA1, ExpiryDate: time.Date(2027, 10, 12, 0, 0, 0, 0, time.UTC)},
		{Owner: "Maria Silva (Escrevente)", Type: domain.CertificateA1, ExpiryDate: time.Now().AddDate(0, 0, 20)},
	}
}
