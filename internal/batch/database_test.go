package batch

import (
	"errors"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/receipt-matcher/internal/matching"
	"github.com/zombor/receipt-matcher/internal/statement"
)

var _ = Describe("BoltDB", func() {
	var (
		dbPath string
		db     *BoltDB
	)

	newBatch := func(id string, created time.Time) *Batch {
		return &Batch{
			ID:            id,
			StatementName: "statement.csv",
			Columns:       statement.Columns{Vendor: "Vendor", Number: "#"},
			Options:       matching.DefaultOptions(),
			Transactions:  2,
			Outcomes: []Outcome{
				{Receipt: "hd.png", Status: StatusMatched, TransactionNumber: "1", Vendor: "home depot", Score: 100, OutputName: "01 - Home Depot.pdf"},
			},
			Matched:     1,
			ArchivePath: id + ".zip",
			CreatedAt:   created,
		}
	}

	BeforeEach(func() {
		dbPath = filepath.Join(GinkgoT().TempDir(), "test.db")
		var err error
		db, err = NewBoltDB(dbPath)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if db != nil {
			db.Close()
		}
	})

	Describe("SaveBatch and GetBatch", func() {
		var created time.Time

		BeforeEach(func() {
			created = time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
			Expect(db.SaveBatch(newBatch("b1", created))).To(Succeed())
		})

		It("should round-trip the batch", func() {
			got, err := db.GetBatch("b1")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.StatementName).To(Equal("statement.csv"))
			Expect(got.CreatedAt.Equal(created)).To(BeTrue())
			Expect(got.Outcomes).To(HaveLen(1))
			Expect(got.Outcomes[0].OutputName).To(Equal("01 - Home Depot.pdf"))
			Expect(got.Options.AmountTolerance.String()).To(Equal("1"))
		})

		It("should overwrite a batch with the same ID", func() {
			updated := newBatch("b1", created)
			updated.StatementName = "march.csv"
			Expect(db.SaveBatch(updated)).To(Succeed())

			got, err := db.GetBatch("b1")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.StatementName).To(Equal("march.csv"))
		})
	})

	Describe("GetBatch", func() {
		It("returns ErrNotFound for unknown IDs", func() {
			_, err := db.GetBatch("missing")
			Expect(errors.Is(err, ErrNotFound)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring("missing"))
		})
	})

	Describe("ListBatches", func() {
		When("no batches exist", func() {
			It("should return an empty list", func() {
				batches, err := db.ListBatches()
				Expect(err).NotTo(HaveOccurred())
				Expect(batches).NotTo(BeNil())
				Expect(batches).To(BeEmpty())
			})
		})

		When("several batches exist", func() {
			BeforeEach(func() {
				base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
				Expect(db.SaveBatch(newBatch("a", base))).To(Succeed())
				Expect(db.SaveBatch(newBatch("c", base.Add(2*time.Hour)))).To(Succeed())
				Expect(db.SaveBatch(newBatch("b", base.Add(time.Hour)))).To(Succeed())
			})

			It("should return them newest first", func() {
				batches, err := db.ListBatches()
				Expect(err).NotTo(HaveOccurred())
				ids := make([]string, 0, len(batches))
				for _, b := range batches {
					ids = append(ids, b.ID)
				}
				Expect(ids).To(Equal([]string{"c", "b", "a"}))
			})
		})
	})

	Describe("DeleteBatch", func() {
		BeforeEach(func() {
			Expect(db.SaveBatch(newBatch("b1", time.Now()))).To(Succeed())
		})

		It("should remove the batch", func() {
			Expect(db.DeleteBatch("b1")).To(Succeed())
			_, err := db.GetBatch("b1")
			Expect(errors.Is(err, ErrNotFound)).To(BeTrue())
		})

		It("should not fail for unknown IDs", func() {
			Expect(db.DeleteBatch("missing")).To(Succeed())
		})
	})

	Describe("reopening", func() {
		It("should keep saved batches", func() {
			Expect(db.SaveBatch(newBatch("b1", time.Now()))).To(Succeed())
			Expect(db.Close()).To(Succeed())

			var err error
			db, err = NewBoltDB(dbPath)
			Expect(err).NotTo(HaveOccurred())
			_, err = db.GetBatch("b1")
			Expect(err).NotTo(HaveOccurred())
		})
	})
})
